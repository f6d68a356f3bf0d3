// Package convert wires the format interpreters, the OPL engine and the
// VGM recorder together into the handful of operations the command-line
// tool needs: convert one ADL file, convert one MDY+TBR pair, or crawl an
// entire game directory doing both plus every embedded TOT/EXT resource.
package convert

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/DrMcCoy/cokteladl2vgm/adl"
	"github.com/DrMcCoy/cokteladl2vgm/gamedata"
	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
	"github.com/DrMcCoy/cokteladl2vgm/mus"
	"github.com/DrMcCoy/cokteladl2vgm/vgm"
)

// player is satisfied by both *adl.Interpreter and *mus.Interpreter: the
// one interface the recorder loop needs to drive either song format.
type player interface {
	Ended() bool
	Rewind()
	PollMusic(first bool) (uint32, error)
}

// ADL converts one ADL song's bytes into a complete VGM file.
func ADL(data []byte) ([]byte, error) {
	rec := vgm.NewRecorder()

	song, err := adl.New(data, rec.WriteOPL)
	if err != nil {
		return nil, cokerr.Wrap(cokerr.Format, err, "loading ADL")
	}

	return record(rec, song)
}

// MUS converts one MUS melody file, together with its SND timbre bank,
// into a complete VGM file.
func MUS(mdyData, sndData []byte) ([]byte, error) {
	rec := vgm.NewRecorder()

	song, err := mus.New(mdyData, sndData, rec.WriteOPL)
	if err != nil {
		return nil, cokerr.Wrap(cokerr.Format, err, "loading MUS")
	}

	return record(rec, song)
}

// record drives song to completion against rec, starting from a fresh
// Rewind, and returns the serialized VGM bytes.
func record(rec *vgm.Recorder, song player) ([]byte, error) {
	song.Rewind()

	first := true
	for !song.Ended() {
		delay, err := song.PollMusic(first)
		if err != nil {
			return nil, cokerr.Wrap(cokerr.Format, err, "playback")
		}
		first = false

		if delay > 0 {
			rec.Wait(delay)
		}
	}

	return rec.Finish(), nil
}

// Output is one converted song, named the way the command-line tool
// should name the VGM file it writes for it.
type Output struct {
	Name string
	VGM  []byte
}

func changeExtension(name, ext string) string {
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		return name[:dot] + "." + ext
	}
	return name + "." + ext
}

// CrawlDirectory scans path for every standalone ADL song, every MDY+TBR
// pair and every TOT/EXT bundle's embedded songs, converting each to VGM.
// A single file or resource failing to open or convert is reported as a
// warning and does not stop the crawl; only a directory that can't be
// scanned at all is a hard error.
func CrawlDirectory(path string) ([]Output, []error) {
	dir, warnings := gamedata.Open(path)
	if dir == nil {
		return nil, warnings
	}
	defer dir.Close()

	var outputs []Output

	for _, name := range dir.ADL() {
		data, err := dir.GetFile(name)
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "reading ADL %q", name))
			continue
		}

		out, err := ADL(data)
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Format, err, "converting ADL %q", name))
			continue
		}

		outputs = append(outputs, Output{Name: name + ".vgm", VGM: out})
	}

	for _, name := range dir.MDY() {
		tbrName := changeExtension(name, "tbr")

		mdyData, err := dir.GetFile(name)
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "reading MDY %q", name))
			continue
		}
		tbrData, err := dir.GetFile(tbrName)
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "reading TBR %q", tbrName))
			continue
		}

		out, err := MUS(mdyData, tbrData)
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Format, err, "converting MDY %q", name))
			continue
		}

		outputs = append(outputs, Output{Name: name + ".vgm", VGM: out})
	}

	for _, name := range dir.TOT() {
		tot, err := gamedata.OpenTOT(dir, name)
		if err != nil {
			warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "loading TOT %q", name))
			continue
		}

		for i := 0; i < tot.TOTResourceCount(); i++ {
			resName := fmt.Sprintf("%s.tot.%d", tot.Name(), i)

			data, err := tot.GetTOTResource(i)
			if err != nil {
				warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "reading %q", resName))
				continue
			}

			out, err := ADL(data)
			if err != nil {
				warnings = append(warnings, cokerr.Wrap(cokerr.Format, err, "converting %q", resName))
				continue
			}

			outputs = append(outputs, Output{Name: resName + ".vgm", VGM: out})
		}

		for i := 0; i < tot.EXTResourceCount(); i++ {
			resName := fmt.Sprintf("%s.ext.%d", tot.Name(), i)

			data, err := tot.GetEXTResource(i)
			if err != nil {
				warnings = append(warnings, cokerr.Wrap(cokerr.Open, err, "reading %q", resName))
				continue
			}

			out, err := ADL(data)
			if err != nil {
				warnings = append(warnings, cokerr.Wrap(cokerr.Format, err, "converting %q", resName))
				continue
			}

			outputs = append(outputs, Output{Name: resName + ".vgm", VGM: out})
		}
	}

	return outputs, warnings
}

// BaseName strips a path down to its final element, the way the
// single-file conversion commands name their VGM output.
func BaseName(path string) string {
	return filepath.Base(path)
}
