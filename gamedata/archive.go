// Package gamedata scans a Coktel game directory, parses STK/ITK archive
// indices, LZSS-decompresses member files on demand, and parses TOT/EXT
// script resource bundles to surface the ADL songs embedded in them.
package gamedata

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DrMcCoy/cokteladl2vgm/internal/bread"
	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
)

// File is one entry in an archive's index.
type File struct {
	Name        string
	Size        uint32
	Offset      uint32
	Compression uint8
	Archive     *Archive
}

// Archive is one opened STK/ITK container: its own file handle plus the
// lowercase-keyed index of members it carries.
type Archive struct {
	Name  string
	Path  string
	file  *os.File
	Files map[string]*File
}

func (a *Archive) close() error {
	if a.file == nil {
		return nil
	}
	return a.file.Close()
}

// GameDir is a scanned, non-recursive game directory: the plain files in
// it, classified by extension, plus every archive opened from it.
type GameDir struct {
	path string

	diskFiles []string // Every file name found on disk, original case.

	adl []string
	mdy []string
	tot []string
	stk []string

	archives []*Archive
}

func hasExtension(name, ext string) bool {
	got := strings.TrimPrefix(filepath.Ext(name), ".")
	return strings.EqualFold(got, ext)
}

func classify(g *GameDir, name string) {
	switch {
	case hasExtension(name, "stk"), hasExtension(name, "itk"):
		g.stk = append(g.stk, name)
	case hasExtension(name, "adl"), hasExtension(name, "mid"):
		g.adl = append(g.adl, name)
	case hasExtension(name, "mdy"), hasExtension(name, "mus"):
		g.mdy = append(g.mdy, name)
	case hasExtension(name, "tot"):
		g.tot = append(g.tot, name)
	}
}

// Open scans path non-recursively, classifying every plain file by
// extension, then opens every STK/ITK archive found there. A failing
// archive is reported back as a warning rather than failing the whole
// scan: the returned GameDir is usable with that archive simply absent.
func Open(path string) (*GameDir, []error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, []error{cokerr.Wrap(cokerr.Open, err, "can't open %q", path)}
	}

	g := &GameDir{path: path}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		g.diskFiles = append(g.diskFiles, entry.Name())
		classify(g, entry.Name())
	}

	var warnings []error
	for _, name := range g.stk {
		archive, err := openArchive(g, filepath.Join(path, name))
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "opening archive %q", name))
			continue
		}
		g.archives = append(g.archives, archive)
	}

	return g, warnings
}

// ADL returns every standalone ADL/MID candidate found on disk or inside
// an opened archive.
func (g *GameDir) ADL() []string { return g.adl }

// MDY returns every MDY/MUS melody candidate found on disk or inside an
// opened archive.
func (g *GameDir) MDY() []string { return g.mdy }

// TOT returns every TOT script bundle candidate found on disk or inside an
// opened archive.
func (g *GameDir) TOT() []string { return g.tot }

// Close closes every archive file handle this GameDir opened.
func (g *GameDir) Close() error {
	var first error
	for _, a := range g.archives {
		if err := a.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func makeLower(s string) string {
	return strings.ToLower(s)
}

// archiveEntrySize is one index entry: a 13-byte name, a uint32 size, a
// uint32 offset and a uint8 packed flag.
const archiveEntrySize = 13 + 4 + 4 + 1

func openArchive(g *GameDir, path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cokerr.Wrap(cokerr.Open, err, "opening %q", path)
	}

	archive := &Archive{Name: path, Path: path, file: f, Files: make(map[string]*File)}

	countBuf := make([]byte, 2)
	if _, err := io.ReadFull(f, countBuf); err != nil {
		f.Close()
		return nil, cokerr.Wrap(cokerr.Read, err, "reading archive index count")
	}
	fileCount, err := bread.New(countBuf).Uint16()
	if err != nil {
		f.Close()
		return nil, cokerr.Wrap(cokerr.Read, err, "reading archive index count")
	}

	indexBuf := make([]byte, int(fileCount)*archiveEntrySize)
	if _, err := io.ReadFull(f, indexBuf); err != nil {
		f.Close()
		return nil, cokerr.Wrap(cokerr.Read, err, "reading archive index (%d entries)", fileCount)
	}

	r := bread.New(indexBuf)
	for i := uint16(0); i < fileCount; i++ {
		if r.Len() < archiveEntrySize {
			f.Close()
			return nil, cokerr.New(cokerr.Read, "archive index truncated at entry %d of %d (%d bytes)", i, fileCount, r.Size())
		}

		rawName, err := r.FixedString(13)
		if err != nil {
			f.Close()
			return nil, cokerr.Wrap(cokerr.Read, err, "reading archive entry name %d", i)
		}
		size, err := r.Uint32()
		if err != nil {
			f.Close()
			return nil, cokerr.Wrap(cokerr.Read, err, "reading archive entry size %d", i)
		}
		offset, err := r.Uint32()
		if err != nil {
			f.Close()
			return nil, cokerr.Wrap(cokerr.Read, err, "reading archive entry offset %d", i)
		}
		packed, err := r.Byte()
		if err != nil {
			f.Close()
			return nil, cokerr.Wrap(cokerr.Read, err, "reading archive entry flag %d", i)
		}

		name := makeLower(rawName)
		compression := uint8(0)
		if packed != 0 {
			compression = 1
		}

		// Geisha uses .0ot files: compressed TOT files without the
		// packed byte set.
		if hasExtension(name, "0ot") {
			name = name[:len(name)-3] + "tot"
			compression = 2
		}

		file := &File{Name: name, Size: size, Offset: offset, Compression: compression, Archive: archive}
		archive.Files[name] = file

		classify(g, name)
	}

	return archive, nil
}

// GetFile resolves name against the on-disk files first (case-insensitive),
// then against every opened archive's index (also case-insensitive), and
// returns its fully decompressed bytes.
func (g *GameDir) GetFile(name string) ([]byte, error) {
	if data, ok, err := g.openDirectFile(name); ok || err != nil {
		return data, err
	}

	file := g.findArchiveFile(name)
	if file == nil {
		return nil, cokerr.New(cokerr.Open, "file %q not found", name)
	}

	return g.openArchiveFile(file)
}

func (g *GameDir) openDirectFile(name string) ([]byte, bool, error) {
	for _, f := range g.diskFiles {
		if !strings.EqualFold(f, name) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(g.path, f))
		if err != nil {
			return nil, true, cokerr.Wrap(cokerr.Open, err, "opening %q", f)
		}
		return data, true, nil
	}

	return nil, false, nil
}

func (g *GameDir) findArchiveFile(name string) *File {
	lower := makeLower(name)

	for _, a := range g.archives {
		if f, ok := a.Files[lower]; ok {
			return f
		}
	}

	return nil
}

func (g *GameDir) openArchiveFile(file *File) ([]byte, error) {
	if file.Archive == nil || file.Archive.file == nil {
		return nil, cokerr.New(cokerr.Open, "file %q has no open archive", file.Name)
	}

	if _, err := file.Archive.file.Seek(int64(file.Offset), io.SeekStart); err != nil {
		return nil, cokerr.Wrap(cokerr.Seek, err, "seeking to %q in %q", file.Name, file.Archive.Name)
	}

	raw := make([]byte, file.Size)
	if _, err := io.ReadFull(file.Archive.file, raw); err != nil {
		return nil, cokerr.Wrap(cokerr.Read, err, "reading %q from %q", file.Name, file.Archive.Name)
	}

	if file.Compression == 0 {
		return raw, nil
	}

	return Unpack(raw, file.Compression)
}
