package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAsynqLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	l := asynqLogger{log: zerolog.New(&buf)}

	l.Warn("retrying task ", 3)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "retrying task 3", entry["message"])

	buf.Reset()
	l.Fatal("broker down")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
	require.Equal(t, true, entry["fatal"])
}
