package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *BlobStore {
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func readAll(t *testing.T, s *BlobStore, rel string) string {
	rc, err := s.Open(rel)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestPutAndOpen(t *testing.T) {
	s := newStore(t)

	blob, err := s.Put("alice", "notes.txt", strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.Equal(t, "alice/notes.txt", blob.Path)
	assert.Equal(t, "notes.txt", blob.Name)
	assert.Equal(t, int64(11), blob.Size)
	assert.True(t, strings.HasPrefix(blob.MimeType, "text/plain"))
	assert.Equal(t, "hello world", readAll(t, s, blob.Path))
}

func TestPutDoesNotOverwrite(t *testing.T) {
	s := newStore(t)

	first, err := s.Put("alice", "report.pdf", strings.NewReader("v1"))
	require.NoError(t, err)
	second, err := s.Put("alice", "report.pdf", strings.NewReader("v2"))
	require.NoError(t, err)
	third, err := s.Put("alice", "report.pdf", strings.NewReader("v3"))
	require.NoError(t, err)

	assert.Equal(t, "alice/report.pdf", first.Path)
	assert.Equal(t, "alice/report (1).pdf", second.Path)
	assert.Equal(t, "alice/report (2).pdf", third.Path)
	assert.Equal(t, "v1", readAll(t, s, first.Path))
	assert.Equal(t, "v2", readAll(t, s, second.Path))
}

func TestPutConcurrentSameName(t *testing.T) {
	s := newStore(t)

	const n = 8
	var wg sync.WaitGroup
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			blob, err := s.Put("bob", "same.txt", strings.NewReader("x"))
			assert.NoError(t, err)
			if blob != nil {
				paths[i] = blob.Path
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestPutRejectsBadNames(t *testing.T) {
	s := newStore(t)

	tests := []struct {
		name     string
		owner    string
		filename string
		wantPath string
		wantErr  bool
	}{
		{name: "traversal is flattened", owner: "alice", filename: "../../etc/passwd", wantPath: "alice/passwd"},
		{name: "windows separators", owner: "alice", filename: `C:\tmp\a.txt`, wantPath: "alice/a.txt"},
		{name: "empty", owner: "alice", filename: "", wantErr: true},
		{name: "dot dot", owner: "alice", filename: "..", wantErr: true},
		{name: "trash owner", owner: ".trash", filename: "a.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := s.Put(tt.owner, tt.filename, strings.NewReader("data"))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, blob.Path)
		})
	}
}

func TestOpenRejectsEscape(t *testing.T) {
	s := newStore(t)
	_, err := s.Open("../outside.txt")
	assert.Error(t, err)
}

func TestTrashRestoreAndPurge(t *testing.T) {
	s := newStore(t)
	blob, err := s.Put("carol", "a.txt", strings.NewReader("content"))
	require.NoError(t, err)
	abs := filepath.Join(s.Root(), blob.Path)

	// 移入回收区后原位置不存在
	tr, err := s.Trash(blob.Path)
	require.NoError(t, err)
	_, err = os.Stat(abs)
	assert.True(t, os.IsNotExist(err))

	// 恢复
	require.NoError(t, tr.Restore())
	assert.Equal(t, "content", readAll(t, s, blob.Path))

	// 再次移入并清除
	tr, err = s.Trash(blob.Path)
	require.NoError(t, err)
	require.NoError(t, tr.Purge())
	_, err = os.Stat(abs)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Join(s.Root(), trashDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrashMissingAndDirectory(t *testing.T) {
	s := newStore(t)

	tr, err := s.Trash("nobody/missing.txt")
	require.NoError(t, err)
	assert.NoError(t, tr.Restore())
	assert.NoError(t, tr.Purge())

	_, err = s.Put("dave", "one.txt", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = s.Put("dave", "two.txt", strings.NewReader("2"))
	require.NoError(t, err)

	tr, err = s.Trash(UserDir("dave"))
	require.NoError(t, err)
	require.NoError(t, tr.Purge())
	_, err = os.Stat(filepath.Join(s.Root(), "dave"))
	assert.True(t, os.IsNotExist(err))

	_, err = s.Trash("")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	blob, err := s.Put("erin", "b.bin", strings.NewReader("bytes"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(blob.Path))
	assert.NoError(t, s.Remove(blob.Path))
}
