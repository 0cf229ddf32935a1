// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "go.uber.org/zap"

// ZapListener logs every core event through a zap logger.
type ZapListener struct {
	Logger *zap.Logger
}

var _ Listener = ZapListener{}

func (z ZapListener) OnObservationAdded(e ObservationAdded) {
	z.Logger.Debug("observation added",
		zap.String("deviceUuid", e.DeviceUUID),
		zap.String("dataItemId", e.DataItemID),
		zap.String("category", e.Category),
		zap.Uint64("sequence", e.Sequence),
	)
}

func (z ZapListener) OnInvalidObservation(e InvalidObservation) {
	z.Logger.Warn("observation rejected",
		zap.String("device", e.DeviceKey),
		zap.String("dataItem", e.DataItemKey),
		zap.String("reason", e.Reason),
	)
}

func (z ZapListener) OnAssetAdded(e AssetAdded) {
	z.Logger.Info("asset stored",
		zap.String("assetId", e.AssetID),
		zap.String("type", e.Type),
		zap.String("deviceUuid", e.DeviceUUID),
		zap.Bool("replaced", e.Replaced),
	)
}

func (z ZapListener) OnInvalidAsset(e InvalidAsset) {
	z.Logger.Warn("asset rejected",
		zap.String("assetId", e.AssetID),
		zap.String("reason", e.Reason),
	)
}

func (z ZapListener) OnDeviceAdded(e DeviceAdded) {
	z.Logger.Info("device registered",
		zap.String("uuid", e.UUID),
		zap.String("name", e.Name),
		zap.Bool("replaced", e.Replaced),
	)
}

func (z ZapListener) OnInvalidModel(e InvalidModel) {
	z.Logger.Warn("device model element dropped",
		zap.String("deviceUuid", e.DeviceUUID),
		zap.String("kind", e.Kind),
		zap.String("id", e.ID),
		zap.String("reason", e.Reason),
	)
}

func (z ZapListener) OnRetentionCompleted(e RetentionCompleted) {
	z.Logger.Info("retention completed",
		zap.Uint64("from", e.From),
		zap.Uint64("to", e.To),
		zap.Int("evicted", e.Evicted),
	)
}

func (z ZapListener) OnBufferFault(e BufferFault) {
	z.Logger.Error("buffer fault",
		zap.String("path", e.Path),
		zap.Error(e.Err),
	)
}

func (z ZapListener) OnStreamClosed(e StreamClosed) {
	if e.Err != nil {
		z.Logger.Warn("stream aborted",
			zap.Duration("duration", e.Duration),
			zap.Uint64("chunks", e.Chunks),
			zap.Error(e.Err),
		)
		return
	}
	z.Logger.Debug("stream closed",
		zap.Duration("duration", e.Duration),
		zap.Uint64("chunks", e.Chunks),
	)
}
