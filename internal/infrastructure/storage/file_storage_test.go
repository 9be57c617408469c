package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveAndRead(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())
	ctx := context.Background()
	key := "liquidations/liq-1/abc-or.pdf"

	t.Run("creates parent directories", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, key, []byte("receipt")))
		assert.FileExists(t, filepath.Join(tempDir, "liquidations", "liq-1", "abc-or.pdf"))
		assert.True(t, fs.Exists(ctx, key))

		content, err := fs.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("receipt"), content)
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, key, []byte("updated")))

		content, err := fs.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("updated"), content)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(tempDir, "liquidations", "liq-1"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestLocalFileStorage_Delete(t *testing.T) {
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "a/b.txt", []byte("x")))
	require.NoError(t, fs.Delete(ctx, "a/b.txt"))
	assert.False(t, fs.Exists(ctx, "a/b.txt"))

	require.NoError(t, fs.Delete(ctx, "a/b.txt"), "deleting twice succeeds")

	_, err := fs.Read(ctx, "a/b.txt")
	assert.Error(t, err)
}

func TestLocalFileStorage_RejectsEscapingKeys(t *testing.T) {
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, key := range []string{"../outside.txt", "a/../../outside.txt", "", "."} {
		t.Run(key, func(t *testing.T) {
			err := fs.Save(ctx, key, []byte("x"))
			assert.Error(t, err)
			assert.False(t, fs.Exists(ctx, key))
		})
	}
}
