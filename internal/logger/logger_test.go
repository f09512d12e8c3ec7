// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Empty(t, rb.GetAll())

	rb.Push(1)
	rb.Push(2)
	assert.Equal(t, []int{1, 2}, rb.GetAll())

	rb.Push(3)
	rb.Push(4)
	rb.Push(5)
	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())
	assert.Equal(t, 3, rb.Len())

	rb.Clear()
	assert.Zero(t, rb.Len())
	rb.Push(6)
	assert.Equal(t, []int{6}, rb.GetAll())
}

func TestLogBuffer(t *testing.T) {
	buf := NewLogBuffer(2)
	l := zerolog.New(buf).With().Timestamp().Logger()

	l.Debug().Msg("hidden")
	l.Info().Str("series", "Show").Int("deleted", 3).Msg("first")
	l.Warn().Msg("second")
	l.Error().Msg("third")

	entries := buf.Recent()
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "third", entries[1].Message)

	_, err := buf.Write([]byte("not json"))
	require.NoError(t, err)
	assert.Len(t, buf.Recent(), 2)
}

func TestLogEntry_MarshalJSON(t *testing.T) {
	buf := NewLogBuffer(10)
	l := zerolog.New(buf).With().Timestamp().Logger()
	l.Info().Int("deleted", 3).Msg("Scheduled cleanup complete")

	entries := buf.Recent()
	require.Len(t, entries, 1)

	data, err := json.Marshal(entries[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "info", decoded["level"])
	assert.Equal(t, "Scheduled cleanup complete", decoded["message"])
	assert.Equal(t, float64(3), decoded["deleted"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, decoded["time"])
}

func TestConfigure_FileOutput(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		Close()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		Init()
	})

	require.NoError(t, Configure(Config{Level: "debug", Path: dir}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Buffer().Clear()
	msg := fmt.Sprintf("file output %s", t.Name())
	log.Info().Msg(msg)

	data, err := os.ReadFile(filepath.Join(dir, "trimmarr.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), msg)

	require.Len(t, Buffer().Recent(), 1)
	assert.Equal(t, msg, Buffer().Recent()[0].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
}
