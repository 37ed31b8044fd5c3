package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValuePairsBecomeFields(t *testing.T) {
	var buf bytes.Buffer
	Setup("production", &buf)

	Info("order created", "order_id", uint64(7), "table", "12")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["message"])
	assert.Equal(t, float64(7), entry["order_id"])
	assert.Equal(t, "12", entry["table"])
	assert.Equal(t, "info", entry["level"])
}

func TestBareErrorIsLoggedAsErrorField(t *testing.T) {
	var buf bytes.Buffer
	Setup("production", &buf)

	Error("line insert failed", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestDebugSuppressedOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	Setup("production", &buf)

	Debug("noise")

	assert.Empty(t, buf.String())
}
