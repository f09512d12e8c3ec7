// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logger

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout of buffered entries.
const TimeFormat = "2006-01-02 15:04:05"

// LogEntry is one buffered log line. Extra zerolog fields are flattened next
// to time, level and message when encoded.
type LogEntry struct {
	Time    string
	Level   string
	Message string
	Fields  map[string]any
}

// MarshalJSON implements json.Marshaler.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["time"] = e.Time
	out["level"] = e.Level
	out["message"] = e.Message
	return json.Marshal(out)
}

// LogBuffer is an io.Writer that keeps the most recent info-or-higher
// zerolog entries in memory.
type LogBuffer struct {
	entries *RingBuffer[LogEntry]
}

// NewLogBuffer creates a buffer holding at most size entries.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &LogBuffer{entries: NewRingBuffer[LogEntry](size)}
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
// Malformed input is ignored.
func (b *LogBuffer) Write(p []byte) (int, error) {
	if entry, ok := parseEntry(p); ok {
		b.entries.Push(entry)
	}
	return len(p), nil
}

// Recent returns the buffered entries, oldest first.
func (b *LogBuffer) Recent() []LogEntry {
	return b.entries.GetAll()
}

// Clear drops every buffered entry.
func (b *LogBuffer) Clear() {
	b.entries.Clear()
}

func parseEntry(data []byte) (LogEntry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, false
	}

	entry := LogEntry{Fields: map[string]any{}}

	if level, ok := raw[zerolog.LevelFieldName].(string); ok {
		entry.Level = level
		delete(raw, zerolog.LevelFieldName)
	}
	if lvl, err := zerolog.ParseLevel(entry.Level); err == nil && lvl < zerolog.InfoLevel && lvl != zerolog.NoLevel {
		return LogEntry{}, false
	}

	entry.Time = time.Now().Format(TimeFormat)
	if ts, ok := raw[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Time = t.Local().Format(TimeFormat)
		}
		delete(raw, zerolog.TimestampFieldName)
	}

	if msg, ok := raw[zerolog.MessageFieldName].(string); ok {
		entry.Message = msg
		delete(raw, zerolog.MessageFieldName)
	}

	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, true
}
