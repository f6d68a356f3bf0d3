package gamedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestOpenClassifiesDiskFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "INTRO.ADL", []byte("adl"))
	writeTempFile(t, dir, "theme.mdy", []byte("mdy"))
	writeTempFile(t, dir, "game.TOT", []byte("tot"))

	g, warnings := Open(dir)
	require.Empty(t, warnings)

	assert.Equal(t, []string{"INTRO.ADL"}, g.ADL())
	assert.Equal(t, []string{"theme.mdy"}, g.MDY())
	assert.Equal(t, []string{"game.TOT"}, g.TOT())
}

func TestGetFileResolvesCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "INTRO.ADL", []byte("payload"))

	g, warnings := Open(dir)
	require.Empty(t, warnings)

	data, err := g.GetFile("intro.adl")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	data, err = g.GetFile("INTRO.ADL")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestGetFileMissingIsAnError(t *testing.T) {
	dir := t.TempDir()

	g, warnings := Open(dir)
	require.Empty(t, warnings)

	_, err := g.GetFile("nope.adl")
	assert.Error(t, err)
}

func TestOpenOnMissingDirectoryReturnsWarning(t *testing.T) {
	g, warnings := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Nil(t, g)
	require.Len(t, warnings, 1)
}
