package sender

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestNewGeneratesFreshKeyMaterialAndInviteCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o644))

	e1, err := New("room-1", []string{path}, discardLogger())
	require.NoError(t, err)
	e2, err := New("room-1", []string{path}, discardLogger())
	require.NoError(t, err)

	assert.NotEqual(t, e1.InviteCode(), e2.InviteCode())
	assert.True(t, strings.HasPrefix(e1.InviteCode(), "room-1-"))
	assert.Equal(t, "room-1", e1.RoomID())
}

func TestEnumerateRejectsDirectories(t *testing.T) {
	dir := t.TempDir()
	_, err := enumerate([]string{dir})
	assert.ErrorIs(t, err, transfererrors.ErrPathIsDirectory)
}

func TestEnumerateRejectsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := enumerate([]string{path})
	assert.ErrorIs(t, err, transfererrors.ErrFileEmpty)
}

func TestEnumerateCollectsSizeAndName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	files, err := enumerate([]string{path})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "file.bin", files[0].name)
	assert.Equal(t, int64(10), files[0].size)
}
