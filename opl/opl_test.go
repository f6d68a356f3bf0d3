package opl

import "testing"

func newTestEngine() (*Engine, *[]byte) {
	var writes []byte
	e := New(func(reg, val byte) {
		writes = append(writes, reg, val)
	})
	return e, &writes
}

func TestFrequencyTableRow0(t *testing.T) {
	e, _ := newTestEngine()
	if e.freqs[0][0] != 343 {
		t.Errorf("freqs[0][0] = %d, want 343", e.freqs[0][0])
	}
}

func TestFrequencyTableMonotonic(t *testing.T) {
	e, _ := newTestEngine()
	for row := 0; row < PitchStepCount; row++ {
		for k := 1; k < HalfToneCount; k++ {
			if e.freqs[row][k] <= e.freqs[row][k-1] {
				t.Errorf("freqs[%d] not strictly increasing at column %d: %d <= %d", row, k, e.freqs[row][k], e.freqs[row][k-1])
			}
		}
	}
}

func TestChangePitchIdentityAtMidpoint(t *testing.T) {
	e, _ := newTestEngine()
	e.SetPitchRange(12)

	e.changePitch(0, MidPitch)

	if e.halfToneOffset[0] != 0 {
		t.Errorf("halfToneOffset = %d, want 0", e.halfToneOffset[0])
	}
	if e.freqRow[0] != 0 {
		t.Errorf("freqRow = %d, want 0", e.freqRow[0])
	}
}

func TestNoteOnClampsLowNotes(t *testing.T) {
	e, writes := newTestEngine()
	*writes = nil

	e.NoteOn(0, 5) // note - 12 would underflow; must clamp to 0.
	a := e.voiceNote[0]
	if a != 0 {
		t.Errorf("voiceNote = %d, want 0 after clamping", a)
	}
}

func TestNoteOnWritesKeyOnBit(t *testing.T) {
	e, writes := newTestEngine()
	*writes = nil

	e.NoteOn(0, 60)

	found := false
	w := *writes
	for i := 0; i+1 < len(w); i += 2 {
		if w[i] == 0xB0 && w[i+1]&0x20 != 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 0xB0 write with key-on bit set, got %v", w)
	}
}

func TestNoteOffClearsKeyOnBit(t *testing.T) {
	e, writes := newTestEngine()
	e.NoteOn(0, 60)
	*writes = nil

	e.NoteOff(0)

	w := *writes
	for i := 0; i+1 < len(w); i += 2 {
		if w[i] == 0xB0 && w[i+1]&0x20 != 0 {
			t.Errorf("expected key-on bit cleared after NoteOff, got %v", w)
		}
	}
}

func TestSetPercussionModePresetsTomAndSnarePitch(t *testing.T) {
	e, _ := newTestEngine()

	e.SetPercussionMode(true)

	if !e.IsPercussionMode() {
		t.Errorf("expected percussion mode to be set")
	}
	if e.voiceNote[VoiceTom] != 24 {
		t.Errorf("tom pitch = %d, want 24", e.voiceNote[VoiceTom])
	}
	if e.voiceNote[VoiceSnareDrum] != 31 {
		t.Errorf("snare pitch = %d, want 31", e.voiceNote[VoiceSnareDrum])
	}
}

func TestSetVoiceVolumeClampsToMax(t *testing.T) {
	e, writes := newTestEngine()
	*writes = nil

	e.SetVoiceVolume(0, 200) // Over MaxVolume; must be clamped.

	if e.operatorVolume[voiceMelodyOperator[1][0]] != MaxVolume {
		t.Errorf("stored volume = %d, want clamp to %d", e.operatorVolume[voiceMelodyOperator[1][0]], MaxVolume)
	}
}

func TestWriteRegistersInRange(t *testing.T) {
	e, writes := newTestEngine()
	*writes = nil

	var timbre [28]uint16
	copy(timbre[0:13], pianoParams[0][:13])
	copy(timbre[13:26], pianoParams[1][:13])
	timbre[26], timbre[27] = pianoParams[0][13], pianoParams[1][13]

	e.SetVoiceTimbre(0, timbre)
	e.NoteOn(0, 60)
	e.SetVoiceVolume(0, 100)
	e.BendVoicePitch(0, 0x1000)
	e.NoteOff(0)

	w := *writes
	for i := 0; i+1 < len(w); i += 2 {
		reg := w[i]
		if !validRegister(reg) {
			t.Errorf("register 0x%02X outside the documented OPL2 ranges", reg)
		}
	}
}

func validRegister(reg byte) bool {
	switch {
	case reg == 0x01 || reg == 0x08 || reg == 0xBD:
		return true
	case reg >= 0x20 && reg <= 0x35:
		return true
	case reg >= 0x40 && reg <= 0x55:
		return true
	case reg >= 0x60 && reg <= 0x75:
		return true
	case reg >= 0x80 && reg <= 0x95:
		return true
	case reg >= 0xA0 && reg <= 0xA8:
		return true
	case reg >= 0xB0 && reg <= 0xB8:
		return true
	case reg >= 0xC0 && reg <= 0xC8:
		return true
	case reg >= 0xE0 && reg <= 0xF5:
		return true
	}
	return false
}
