// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"

	"github.com/mtconnect-go/mtcagent/broker"
	"github.com/mtconnect-go/mtcagent/buffer"
	"github.com/mtconnect-go/mtcagent/protocol"
)

const applicationName = "mtcagent"

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := fx.New(
		arrange.LoggerFunc(logger.Sugar().Infof),
		arrange.ForViper(v),
		fx.Supply(logger, v),
		touchstone.Provide(),
		buffer.Provide(),
		broker.Provide(),
		protocol.ProvideHandlers(),
		provideServerMetrics(),
		fx.Provide(
			unmarshalBufferConfig,
			unmarshalAgentOptions,
			unmarshalStreamConfig,
			unmarshalServersConfig,
			newMetricsHandler,
		),

		fx.Invoke(
			RegisterDevices,
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func unmarshalBufferConfig(v *viper.Viper) (buffer.Config, error) {
	cfg := buffer.DefaultConfig()
	if err := v.UnmarshalKey("buffer", &cfg); err != nil {
		return buffer.Config{}, fmt.Errorf("failed to unmarshal buffer config: %w", err)
	}
	return cfg, nil
}

func unmarshalAgentOptions(v *viper.Viper) (broker.Options, error) {
	opts := broker.Options{Version: Version}
	if err := v.UnmarshalKey("agent", &opts); err != nil {
		return broker.Options{}, fmt.Errorf("failed to unmarshal agent options: %w", err)
	}
	if opts.Sender == "" {
		host, err := os.Hostname()
		if err != nil {
			host = applicationName
		}
		opts.Sender = host
	}
	return opts, nil
}

func unmarshalStreamConfig(v *viper.Viper) (protocol.StreamConfig, error) {
	cfg := protocol.DefaultStreamConfig()
	if err := v.UnmarshalKey("streams", &cfg); err != nil {
		return protocol.StreamConfig{}, fmt.Errorf("failed to unmarshal stream config: %w", err)
	}
	return cfg, nil
}

func unmarshalServersConfig(v *viper.Viper) (ServersConfig, error) {
	cfg := DefaultServersConfig()
	if err := v.UnmarshalKey("servers", &cfg); err != nil {
		return ServersConfig{}, fmt.Errorf("failed to unmarshal servers config: %w", err)
	}
	return cfg, nil
}
