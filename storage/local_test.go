package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutOpen(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	path, err := store.Put(ctx, "certificates/7/CERT-ABC-7-3.pdf", strings.NewReader("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "certificates/7/CERT-ABC-7-3.pdf", path)
	assert.FileExists(t, filepath.Join(root, "certificates", "7", "CERT-ABC-7-3.pdf"))

	rc, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
}

func TestLocalStoreOpenMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "certificates/1/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreKeepsKeysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../../escape.pdf", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "escape.pdf"))

	_, err = store.Put(context.Background(), "  ", strings.NewReader("x"), "")
	assert.Error(t, err)
}
