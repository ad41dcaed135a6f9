package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_JSONShape(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	var buf bytes.Buffer
	logger := setup(&buf, " reservations-api ", "test")
	logger.Info("hold created", "hold_id", "h-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "hold created", line["message"])
	require.Equal(t, "reservations-api", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "h-1", line["hold_id"])
	require.Contains(t, line, "timestamp")

	buf.Reset()
	log.Printf("from std log")
	require.Contains(t, buf.String(), `"message":"from std log"`)
}
