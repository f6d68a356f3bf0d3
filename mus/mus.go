// Package mus interprets the MUS/SND song format pair: SND is a timbre
// bank, MUS is the melody file that drives playback with a MIDI-like
// running-status byte stream. Like package adl, it only knows how to turn
// those bytes into opl.Engine calls; VGM recording and file loading are
// someone else's job.
package mus

import (
	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
	"github.com/DrMcCoy/cokteladl2vgm/opl"
)

const paramsPerIns = opl.OperatorsPerVoice * opl.ParamCount // 28

// Timbre is one SND instrument: a printable name and 28 operator
// parameters. MUS never patches instruments mid-song, so unlike adl.Timbre
// there is no separate start/live copy.
type Timbre struct {
	Name   string
	params [paramsPerIns]uint16
}

// Interpreter drives an opl.Engine from one parsed MUS+SND song pair.
type Interpreter struct {
	engine *opl.Engine

	timbres []Timbre

	songID           uint32
	songName         string
	ticksPerBeat     uint8
	beatsPerMeasure  uint8 // Parsed, never consulted; kept for round-trip fidelity.
	soundMode        uint8
	pitchBendRange   uint8
	baseTempo        uint16

	tempo       uint32
	lastCommand byte

	songData []byte
	playPos  int

	ended bool
}

// New parses a SND timbre bank and a MUS melody file and returns an
// interpreter ready to be Rewind and then repeatedly PollMusic'd.
func New(musData, sndData []byte, write opl.WriteFunc) (*Interpreter, error) {
	in := &Interpreter{engine: opl.New(write)}

	timbres, err := parseSND(sndData)
	if err != nil {
		return nil, cokerr.Wrap(cokerr.Format, err, "failed to load SND")
	}
	in.timbres = timbres

	if err := in.parseMUS(musData); err != nil {
		return nil, cokerr.Wrap(cokerr.Format, err, "failed to load MUS")
	}

	return in, nil
}

func parseSND(data []byte) ([]Timbre, error) {
	if len(data) <= 6 {
		return nil, cokerr.New(cokerr.Format, "SND file too small (%d)", len(data))
	}

	versionMajor, versionMinor := data[0], data[1]
	if versionMajor != 1 || versionMinor != 0 {
		return nil, cokerr.New(cokerr.Format, "unsupported SND version %d.%d", versionMajor, versionMinor)
	}

	timbreCount := int(le16(data[2:]))
	timbrePos := int(le16(data[4:]))

	minTimbrePos := 6 + timbreCount*9
	if timbrePos < minTimbrePos {
		return nil, cokerr.New(cokerr.Format, "SND timbre offset too small: %d < %d", timbrePos, minTimbrePos)
	}

	if timbrePos > len(data) {
		return nil, cokerr.New(cokerr.Read, "SND timbre offset past end of file")
	}
	paramSize := paramsPerIns * 2
	timbreParamsSize := len(data) - timbrePos
	if timbreParamsSize != timbreCount*paramSize {
		return nil, cokerr.New(cokerr.Format, "SND timbre parameters size mismatch: %d != %d", timbreParamsSize, timbreCount*paramSize)
	}

	timbres := make([]Timbre, timbreCount)

	pos := 6
	for i := range timbres {
		name := data[pos : pos+9]
		timbres[i].Name = trimNUL(name)
		pos += 9
	}

	pos = timbrePos
	for i := range timbres {
		for p := 0; p < paramsPerIns; p++ {
			timbres[i].params[p] = le16(data[pos:])
			pos += 2
		}
	}

	return timbres, nil
}

func (in *Interpreter) parseMUS(data []byte) error {
	if len(data) <= 6 {
		return cokerr.New(cokerr.Format, "MUS file too small (%d)", len(data))
	}

	versionMajor, versionMinor := data[0], data[1]
	if versionMajor != 1 || versionMinor != 0 {
		return cokerr.New(cokerr.Format, "unsupported MUS version %d.%d", versionMajor, versionMinor)
	}

	pos := 2
	in.songID = le32(data[pos:])
	pos += 4

	in.songName = trimNUL(data[pos : pos+30])
	pos += 30

	in.ticksPerBeat = data[pos]
	pos++
	in.beatsPerMeasure = data[pos]
	pos++

	pos += 4 // Length of song in ticks, unused.

	songDataSize := le32(data[pos:])
	pos += 4

	pos += 4 // Number of commands, unused.
	pos += 8 // Unused.

	in.soundMode = data[pos]
	pos++
	in.pitchBendRange = data[pos]
	pos++
	in.baseTempo = le16(data[pos:])
	pos += 2

	pos += 8 // Unused.

	realSongDataSize := len(data) - pos
	if uint32(realSongDataSize) < songDataSize {
		return cokerr.New(cokerr.Read, "file too small for the song data: %d < %d", realSongDataSize, songDataSize)
	}

	in.songData = data[pos : pos+int(songDataSize)]

	return nil
}

// Ended reports whether the song has reached its end marker.
func (in *Interpreter) Ended() bool {
	return in.ended
}

// Rewind resets playback to the start of the song.
func (in *Interpreter) Rewind() {
	in.playPos = 0
	in.ended = false

	in.tempo = uint32(in.baseTempo)
	in.lastCommand = 0

	in.engine.SetPercussionMode(in.soundMode != 0)
	in.engine.SetPitchRange(in.pitchBendRange)
}

func (in *Interpreter) setInstrument(voice, instrument uint8) {
	if int(instrument) >= len(in.timbres) {
		return
	}
	in.engine.SetVoiceTimbre(voice, in.timbres[instrument].params)
}

func (in *Interpreter) peek() (byte, error) {
	if in.playPos >= len(in.songData) {
		return 0, cokerr.New(cokerr.Read, "MUS event stream exhausted")
	}
	return in.songData[in.playPos], nil
}

func (in *Interpreter) readByte() (byte, error) {
	b, err := in.peek()
	if err != nil {
		return 0, err
	}
	in.playPos++
	return b, nil
}

func (in *Interpreter) sampleDelay(delay uint16) uint32 {
	if delay == 0 {
		return 0
	}
	freq := (uint32(in.ticksPerBeat) * in.tempo) / 60
	if freq == 0 {
		return 0
	}
	return (uint32(delay) * opl.SampleRate) / freq
}

func (in *Interpreter) end() {
	in.ended = true
	in.engine.End(false)
}

// PollMusic produces the next batch of OPL calls and returns the number of
// 44100Hz samples to wait before the next poll. first must be true only on
// the very first call after Rewind: the MUS format's first byte is always
// a lone delay with no preceding event.
func (in *Interpreter) PollMusic(first bool) (uint32, error) {
	if in.ended || len(in.timbres) == 0 || in.playPos >= len(in.songData) {
		in.end()
		return 0, nil
	}

	if first {
		delay, err := in.readByte()
		if err != nil {
			in.end()
			return 0, nil
		}
		return in.sampleDelay(uint16(delay)), nil
	}

	var delay uint16
	for delay == 0 {
		cmd, err := in.peek()
		if err != nil {
			return 0, err
		}

		if cmd == 0xF8 {
			in.playPos++
			delay = 0xF8
			break
		}

		if cmd == 0xFC {
			in.end()
			return 0, nil
		}

		if cmd == 0xF0 {
			in.playPos++

			type1, err := in.readByte()
			if err != nil {
				return 0, err
			}
			type2, err := in.readByte()
			if err != nil {
				return 0, err
			}

			if type1 == 0x7F && type2 == 0 {
				num, err := in.readByte()
				if err != nil {
					return 0, err
				}
				denom, err := in.readByte()
				if err != nil {
					return 0, err
				}

				in.tempo = uint32(in.baseTempo)*uint32(num) + ((uint32(in.baseTempo) * uint32(denom)) >> 7)

				if _, err := in.readByte(); err != nil { // Skip one byte.
					return 0, err
				}
			} else {
				in.playPos -= 2
				for {
					b, err := in.readByte()
					if err != nil {
						return 0, err
					}
					if b == 0xF7 {
						break
					}
				}
			}

			d, err := in.readByte()
			if err != nil {
				return 0, err
			}
			delay = uint16(d)
			break
		}

		if cmd >= 0x80 {
			in.playPos++
			in.lastCommand = cmd
		} else {
			cmd = in.lastCommand
		}

		voice := cmd & 0x0F

		switch cmd & 0xF0 {
		case 0x80: // Note off.
			if _, err := in.readByte(); err != nil {
				return 0, err
			}
			if _, err := in.readByte(); err != nil {
				return 0, err
			}
			in.engine.NoteOff(voice)

		case 0x90: // Note on.
			note, err := in.readByte()
			if err != nil {
				return 0, err
			}
			volume, err := in.readByte()
			if err != nil {
				return 0, err
			}
			if volume != 0 {
				in.engine.SetVoiceVolume(voice, volume)
				in.engine.NoteOn(voice, note)
			} else {
				in.engine.NoteOff(voice)
			}

		case 0xA0: // Set volume.
			v, err := in.readByte()
			if err != nil {
				return 0, err
			}
			in.engine.SetVoiceVolume(voice, v)

		case 0xB0: // Control change, ignored.
			if _, err := in.readByte(); err != nil {
				return 0, err
			}
			if _, err := in.readByte(); err != nil {
				return 0, err
			}

		case 0xC0: // Set instrument.
			instrument, err := in.readByte()
			if err != nil {
				return 0, err
			}
			in.setInstrument(voice, instrument)

		case 0xD0: // Channel pressure, ignored.
			if _, err := in.readByte(); err != nil {
				return 0, err
			}

		case 0xE0: // Pitch bend.
			lo, err := in.readByte()
			if err != nil {
				return 0, err
			}
			hi, err := in.readByte()
			if err != nil {
				return 0, err
			}
			pitch := uint16(lo) | uint16(hi)<<7
			in.engine.BendVoicePitch(voice, pitch)

		default:
			return 0, cokerr.New(cokerr.Format, "unsupported MUS command: 0x%02X", cmd)
		}

		d, err := in.readByte()
		if err != nil {
			return 0, err
		}
		delay = uint16(d)
	}

	if delay == 0xF8 {
		delay = 240
		if next, err := in.peek(); err == nil && next != 0xF8 {
			extra, _ := in.readByte()
			delay += uint16(extra)
		}
	}

	return in.sampleDelay(delay), nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
