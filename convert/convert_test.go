package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildADL assembles a minimal, immediately-ending ADL file: soundMode,
// timbreCount-1, a reserved byte, one all-zero 28-param timbre, then the
// song byte stream, padded to the format's minimum file size.
func buildADL() []byte {
	const minFileSize = 60

	data := []byte{0, 0, 0}
	data = append(data, make([]byte, 28*2)...) // One all-zero timbre.
	data = append(data, 0xFF)                  // End marker.
	for len(data) < minFileSize {
		data = append(data, 0xFF)
	}
	return data
}

// buildMUSAndSND assembles a minimal MUS melody paired with a one-timbre
// SND bank. Its one song byte is consumed by the first poll as the lead
// delay, after which the exhausted stream ends the song.
func buildMUSAndSND() (mdyData, sndData []byte) {
	snd := []byte{1, 0, 1, 0, 15, 0}
	snd = append(snd, make([]byte, 9)...)  // Timbre name, left blank.
	snd = append(snd, make([]byte, 28*2)...) // One all-zero timbre.

	mus := make([]byte, 70)
	mus[0], mus[1] = 1, 0
	mus[36] = 24 // ticksPerBeat
	mus[60] = 120
	mus = append(mus, 0xFC) // Lead delay byte.
	mus[42] = 1             // songDataSize

	return mus, snd
}

func TestADLConvertsToNonEmptyVGM(t *testing.T) {
	out, err := ADL(buildADL())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "Vgm ", string(out[0:4]))
}

func TestMUSConvertsToNonEmptyVGM(t *testing.T) {
	mdy, snd := buildMUSAndSND()
	out, err := MUS(mdy, snd)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "Vgm ", string(out[0:4]))
}

func TestADLRejectsGarbage(t *testing.T) {
	_, err := ADL([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCrawlDirectoryConvertsEveryStandaloneSong(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.adl"), buildADL(), 0o644))

	mdy, snd := buildMUSAndSND()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "theme.mdy"), mdy, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "theme.tbr"), snd, 0o644))

	outputs, warnings := CrawlDirectory(dir)
	assert.Empty(t, warnings)
	require.Len(t, outputs, 2)

	names := map[string]bool{}
	for _, o := range outputs {
		names[o.Name] = true
		assert.NotEmpty(t, o.VGM)
	}
	assert.True(t, names["intro.adl.vgm"])
	assert.True(t, names["theme.mdy.vgm"])
}

func TestCrawlDirectoryReportsMissingCompanionAsWarning(t *testing.T) {
	dir := t.TempDir()

	mdy, _ := buildMUSAndSND()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "theme.mdy"), mdy, 0o644))
	// No theme.tbr companion written.

	outputs, warnings := CrawlDirectory(dir)
	assert.Empty(t, outputs)
	require.Len(t, warnings, 1)
}

func TestCrawlDirectoryOnUnreadableDirIsHardError(t *testing.T) {
	outputs, warnings := CrawlDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Nil(t, outputs)
	require.Len(t, warnings, 1)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "intro.adl", BaseName(filepath.Join("path", "to", "intro.adl")))
}
