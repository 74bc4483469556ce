package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "v1")

	rawURL := "https://jobs.example.org/p/123"
	body := []byte("<html><body>Officer</body></html>")
	require.NoError(t, store.Write(rawURL, body, map[string]int{"found": 1}))

	got, meta, err := store.Read(rawURL)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	require.NotNil(t, meta)
	assert.Equal(t, rawURL, meta.URL)
	assert.Equal(t, "jobs.example.org", meta.Domain)
	assert.Equal(t, len(body), meta.HTMLSize)
	assert.Equal(t, "v1", meta.PipelineVersion)
	assert.JSONEq(t, `{"found":1}`, string(meta.ExtractionResult))
}

func TestStore_LayoutIsDomainPartitionedSHA256(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "v1")

	rawURL := "https://jobs.example.org/p/123"
	require.NoError(t, store.Write(rawURL, []byte("x"), nil))

	sum := sha256.Sum256([]byte(rawURL))
	key := hex.EncodeToString(sum[:])
	_, err := os.Stat(filepath.Join(dir, "jobs.example.org", key+".html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "jobs.example.org", key+".meta.json"))
	assert.NoError(t, err)
}

func TestStore_MalformedURLPartition(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "v1")

	require.NoError(t, store.Write("::not a url::", []byte("x"), nil))
	entries, err := os.ReadDir(filepath.Join(dir, "unknown"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
