// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mtconnect-go/mtcagent/broker"
	"github.com/mtconnect-go/mtcagent/format"
	"github.com/mtconnect-go/mtcagent/model"
)

// DevicesConfig names the device model files loaded at startup.
type DevicesConfig struct {
	// Files are device model documents, JSON or XML by extension.
	Files []string

	// InitializeDataItems seeds every data item without recovered state to
	// UNAVAILABLE after registration.
	InitializeDataItems bool
}

type RegisterDevicesIn struct {
	fx.In
	Viper  *viper.Viper
	Agent  *broker.Agent
	Logger *zap.Logger
}

// RegisterDevices loads the configured device models into the agent. A
// missing devices section is fine: models can also arrive through replaced
// configuration on restart, with observations resolved against the
// persisted name index in the meantime.
func RegisterDevices(in RegisterDevicesIn) error {
	cfg := DevicesConfig{InitializeDataItems: true}
	if err := in.Viper.UnmarshalKey("devices", &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal devices config: %w", err)
	}

	for _, file := range cfg.Files {
		device, err := loadDeviceModel(file)
		if err != nil {
			return err
		}
		if err := in.Agent.AddDevice(device, cfg.InitializeDataItems); err != nil {
			return fmt.Errorf("failed to register device from %s: %w", file, err)
		}
		in.Logger.Info("device model loaded",
			zap.String("file", file),
			zap.String("uuid", device.UUID),
			zap.String("name", device.Name),
		)
	}
	return nil
}

func loadDeviceModel(file string) (*model.Device, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read device model %s: %w", file, err)
	}

	var formatter format.Formatter
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		formatter = format.JSON{}
	case ".xml":
		formatter = format.XML{}
	default:
		return nil, fmt.Errorf("unsupported device model extension on %s", file)
	}

	var device model.Device
	if err := formatter.Decode(data, &device); err != nil {
		return nil, fmt.Errorf("failed to decode device model %s: %w", file, err)
	}
	return &device, nil
}
