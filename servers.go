// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ServerConfig is the listen configuration of one HTTP server.
type ServerConfig struct {
	Address           string
	ReadHeaderTimeout time.Duration
}

// ServersConfig collects the three listeners the agent runs: the MTConnect
// protocol surface, the prometheus scrape endpoint, and the health probe.
type ServersConfig struct {
	Primary ServerConfig
	Metrics ServerConfig
	Health  ServerConfig
}

func DefaultServersConfig() ServersConfig {
	return ServersConfig{
		Primary: ServerConfig{Address: ":5000", ReadHeaderTimeout: 10 * time.Second},
		Metrics: ServerConfig{Address: ":9090", ReadHeaderTimeout: 10 * time.Second},
		Health:  ServerConfig{Address: ":8081", ReadHeaderTimeout: 10 * time.Second},
	}
}

// startServer binds an HTTP server to the application lifecycle. Bind
// failures surface at startup; everything later is the server's problem.
//
// The primary server carries long-poll streaming connections, so no write
// timeout is set anywhere.
func startServer(lc fx.Lifecycle, logger *zap.Logger, name string, cfg ServerConfig, handler http.Handler) {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			listener, err := net.Listen("tcp", cfg.Address)
			if err != nil {
				return err
			}
			logger.Info("server listening",
				zap.String("server", name),
				zap.String("address", listener.Addr().String()),
			)
			go func() {
				if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
					logger.Error("server terminated",
						zap.String("server", name), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
