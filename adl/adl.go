// Package adl interprets the ADL native song format: a single-file byte
// stream carrying a small bank of instrument timbres followed by an event
// stream that drives an opl.Engine. It has no concept of VGM, archives or
// TOT bundles; it only knows how to read ADL bytes and produce OPL calls.
package adl

import (
	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
	"github.com/DrMcCoy/cokteladl2vgm/opl"
)

const (
	minFileSize  = 60
	paramsPerOp  = opl.ParamCount
	paramsPerIns = opl.OperatorsPerVoice * paramsPerOp // 28

	noInstrument = 0xFF
)

// Timbre is one ADL instrument: 28 parameters (13 envelope params + wave
// select, for each of the two operators). startParams is the value loaded
// from the file; params is the live, possibly mid-song-patched, copy that
// Rewind resets back to startParams.
type Timbre struct {
	startParams [paramsPerIns]uint16
	params      [paramsPerIns]uint16
}

// Interpreter drives an opl.Engine from one parsed ADL song.
type Interpreter struct {
	engine *opl.Engine

	soundMode byte
	timbres   []Timbre

	currentInstruments [opl.MaxVoiceCount]int
	modifyInstrument   byte

	songData []byte
	playPos  int

	ended bool
}

// New parses an ADL file's bytes and returns an interpreter ready to be
// Rewind and then repeatedly PollMusic'd. write receives every OPL
// register write the song produces.
func New(data []byte, write opl.WriteFunc) (*Interpreter, error) {
	if len(data) < minFileSize {
		return nil, cokerr.New(cokerr.Format, "ADL file too small (%d bytes)", len(data))
	}

	in := &Interpreter{engine: opl.New(write)}

	soundMode := data[0]
	timbreCount := int(data[1]) + 1
	// data[2] is reserved and skipped.
	pos := 3

	if pos+timbreCount*paramsPerIns*2 > len(data) {
		return nil, cokerr.New(cokerr.Read, "ADL timbre table runs past end of file")
	}

	timbres := make([]Timbre, timbreCount)
	for i := range timbres {
		for p := 0; p < paramsPerIns; p++ {
			timbres[i].startParams[p] = uint16(data[pos]) | uint16(data[pos+1])<<8
			pos += 2
		}
	}

	in.soundMode = soundMode
	in.timbres = timbres
	in.songData = data[pos:]

	return in, nil
}

// Ended reports whether the song has reached its end marker.
func (in *Interpreter) Ended() bool {
	return in.ended
}

// Rewind resets playback to the start of the song, exactly as the
// reference player does on load and loop.
func (in *Interpreter) Rewind() {
	in.playPos = 0
	in.ended = false

	in.engine.SetPercussionMode(in.soundMode != 0)

	for i := range in.timbres {
		in.timbres[i].params = in.timbres[i].startParams
	}

	for i := range in.currentInstruments {
		in.currentInstruments[i] = 0
	}

	numVoice := opl.MelodyVoiceCount
	if in.soundMode != 0 {
		numVoice = opl.MaxVoiceCount
	}
	if len(in.timbres) < numVoice {
		numVoice = len(in.timbres)
	}

	for i := 0; i < numVoice; i++ {
		in.setInstrument(i, in.currentInstruments[i])
		in.engine.SetVoiceVolume(uint8(i), opl.MaxVolume)
	}

	in.modifyInstrument = noInstrument
}

func (in *Interpreter) setInstrument(voice, instrument int) {
	if voice >= opl.MaxVoiceCount || instrument < 0 || instrument >= len(in.timbres) {
		return
	}

	in.currentInstruments[voice] = instrument

	var params [28]uint16
	params = in.timbres[instrument].params
	in.engine.SetVoiceTimbre(uint8(voice), params)
}

func (in *Interpreter) readByte() (byte, error) {
	if in.playPos >= len(in.songData) {
		return 0, cokerr.New(cokerr.Read, "ADL event stream exhausted")
	}
	b := in.songData[in.playPos]
	in.playPos++
	return b, nil
}

// PollMusic produces the next batch of OPL calls and returns the number of
// 44100Hz samples to wait before the next poll. first must be true only on
// the very first call after Rewind: it skips the leading delay byte (or
// two, if its high bit is set) the reference format always carries before
// the first real event.
func (in *Interpreter) PollMusic(first bool) (uint32, error) {
	if in.ended || len(in.timbres) == 0 || in.playPos >= len(in.songData) {
		in.end()
		return 0, nil
	}

	if first {
		lead, err := in.readByte()
		if err != nil {
			in.end()
			return 0, nil
		}
		if lead&0x80 != 0 {
			if _, err := in.readByte(); err != nil {
				in.end()
				return 0, nil
			}
		}
	}

	cmd, err := in.readByte()
	if err != nil {
		return 0, err
	}

	if cmd == 0xFF {
		in.end()
		return 0, nil
	}

	if cmd == 0xFE {
		mod, err := in.readByte()
		if err != nil {
			return 0, err
		}
		in.modifyInstrument = mod
	}

	if cmd >= 0xD0 {
		if err := in.patchInstrument(); err != nil {
			return 0, err
		}
	} else if err := in.voiceCommand(cmd); err != nil {
		return 0, err
	}

	delay, err := in.readByte()
	if err != nil {
		return 0, err
	}
	d := uint16(delay)
	if d&0x80 != 0 {
		lo, err := in.readByte()
		if err != nil {
			return 0, err
		}
		d = ((d & 3) << 8) | uint16(lo)
	}

	return sampleDelay(d), nil
}

func (in *Interpreter) patchInstrument() error {
	if in.modifyInstrument == noInstrument {
		return cokerr.New(cokerr.Format, "no instrument to modify")
	}
	if int(in.modifyInstrument) >= len(in.timbres) {
		return cokerr.New(cokerr.Format, "can't modify invalid instrument %d (%d)", in.modifyInstrument, len(in.timbres))
	}

	paramIndex, err := in.readByte()
	if err != nil {
		return err
	}
	value, err := in.readByte()
	if err != nil {
		return err
	}
	if int(paramIndex) >= paramsPerIns {
		return cokerr.New(cokerr.Format, "instrument parameter index %d out of range", paramIndex)
	}

	in.timbres[in.modifyInstrument].params[paramIndex] = uint16(value)

	for voice, instrument := range in.currentInstruments {
		if instrument == int(in.modifyInstrument) {
			in.setInstrument(voice, instrument)
		}
	}

	return nil
}

func (in *Interpreter) voiceCommand(cmd byte) error {
	voice := cmd & 0x0F

	switch cmd & 0xF0 {
	case 0x00: // Note on with volume.
		note, err := in.readByte()
		if err != nil {
			return err
		}
		volume, err := in.readByte()
		if err != nil {
			return err
		}
		in.engine.SetVoiceVolume(voice, volume)
		in.engine.NoteOn(voice, note)

	case 0x80: // Note off.
		in.engine.NoteOff(voice)

	case 0x90: // Note on.
		note, err := in.readByte()
		if err != nil {
			return err
		}
		in.engine.NoteOn(voice, note)

	case 0xA0: // Pitch bend.
		b, err := in.readByte()
		if err != nil {
			return err
		}
		in.engine.BendVoicePitch(voice, uint16(b)<<7)

	case 0xB0: // Set volume.
		b, err := in.readByte()
		if err != nil {
			return err
		}
		in.engine.SetVoiceVolume(voice, b)

	case 0xC0: // Set instrument.
		b, err := in.readByte()
		if err != nil {
			return err
		}
		in.setInstrument(int(voice), int(b))

	default:
		return cokerr.New(cokerr.Format, "unsupported ADL command: 0x%02X", cmd)
	}

	return nil
}

func (in *Interpreter) end() {
	in.ended = true
	in.engine.End(false)
}

func sampleDelay(delay uint16) uint32 {
	if delay == 0 {
		return 0
	}
	return uint32(delay) * opl.SampleRate / 1000
}
