// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInformationFresh(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	dir := t.TempDir()

	f, err := LoadInformation(dir)
	require.NoError(err)

	info := f.Information()
	assert.NotZero(info.InstanceID)
	assert.NotEmpty(info.UUID)
	assert.Zero(info.Sequence)
}

func TestLoadInformationRestart(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	dir := t.TempDir()

	first, err := LoadInformation(dir)
	require.NoError(err)
	require.NoError(first.Checkpoint(5000))
	firstInfo := first.Information()

	second, err := LoadInformation(dir)
	require.NoError(err)
	secondInfo := second.Information()

	assert.Equal(firstInfo.UUID, secondInfo.UUID, "agent uuid must survive restarts")
	assert.Equal(uint64(5000+CheckpointMargin), secondInfo.Sequence,
		"resumed checkpoint must include the margin")
}

func TestCheckpointNeverRegresses(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	f, err := LoadInformation(t.TempDir())
	require.NoError(err)

	require.NoError(f.Checkpoint(100))
	require.NoError(f.Checkpoint(50))
	assert.Equal(uint64(100), f.Information().Sequence)
}

func TestLoadInformationCorruptRecord(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	dir := t.TempDir()

	require.NoError(os.WriteFile(filepath.Join(dir, "agent.json"), []byte("{not json"), 0o644))

	f, err := LoadInformation(dir)
	require.NoError(err, "a corrupt record must not block startup")
	assert.NotEmpty(f.Information().UUID)
	assert.Zero(f.Information().Sequence)
}

func TestReset(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	f, err := LoadInformation(dir)
	require.NoError(err)
	require.NoError(f.Checkpoint(10))
	require.NoError(f.Reset())

	_, err = os.Stat(filepath.Join(dir, "agent.json"))
	require.True(os.IsNotExist(err))
}
