package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-reservations/internal/config"
)

func TestOpenStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, closeFn, err := OpenStore(ctx, config.Config{Store: "bolt", BoltPath: filepath.Join(t.TempDir(), "r.db")}, logger)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	closeFn()

	_, _, err = OpenStore(ctx, config.Config{Store: "mongo"}, logger)
	require.ErrorContains(t, err, "unknown store")
}
