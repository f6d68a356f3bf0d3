package mus

import "testing"

// buildSND assembles a minimal SND timbre bank with a single all-zero
// timbre named "test".
func buildSND() []byte {
	const timbreCount = 1
	const timbrePos = 6 + 9*timbreCount

	data := make([]byte, 0, timbrePos+paramsPerIns*2)
	data = append(data, 1, 0) // version 1.0
	data = append(data, byte(timbreCount), 0)
	data = append(data, byte(timbrePos), 0)
	name := make([]byte, 9)
	copy(name, "test")
	data = append(data, name...)
	data = append(data, make([]byte, paramsPerIns*2)...) // One zeroed timbre.
	return data
}

// buildMUS assembles a minimal MUS header (70 bytes) followed by songBytes.
func buildMUS(ticksPerBeat, soundMode, pitchBendRange byte, baseTempo uint16, songBytes ...byte) []byte {
	data := make([]byte, 70)
	data[0], data[1] = 1, 0 // version 1.0
	// bytes 2-5: song ID, unused by tests.
	// bytes 6-35: 30-byte name, left zeroed.
	data[36] = ticksPerBeat
	data[37] = 0 // beatsPerMeasure, unused.
	// bytes 38-41: length in ticks, unused.
	songDataSize := uint32(len(songBytes))
	data[42] = byte(songDataSize)
	data[43] = byte(songDataSize >> 8)
	data[44] = byte(songDataSize >> 16)
	data[45] = byte(songDataSize >> 24)
	// bytes 46-57: command count + unused.
	data[58] = soundMode
	data[59] = pitchBendRange
	data[60] = byte(baseTempo)
	data[61] = byte(baseTempo >> 8)
	// bytes 62-69: unused.
	return append(data, songBytes...)
}

func TestParseRejectsBadVersion(t *testing.T) {
	snd := buildSND()
	mus := buildMUS(24, 0, 0, 120, 0xFC)
	mus[0] = 2 // Unsupported major version.

	if _, err := New(mus, snd, func(byte, byte) {}); err == nil {
		t.Fatal("expected an error for an unsupported MUS version")
	}
}

func TestTempoChangeAndDelay(t *testing.T) {
	snd := buildSND()
	song := buildMUS(24, 0, 0, 120, 0xF0, 0x7F, 0x00, 0x02, 0x00, 0x00, 5)

	in, err := New(song, snd, func(byte, byte) {})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	in.Rewind()

	delay, err := in.PollMusic(false)
	if err != nil {
		t.Fatalf("PollMusic() = %v", err)
	}

	wantTempo := uint32(120)*2 + ((uint32(120) * 0) >> 7)
	if in.tempo != wantTempo {
		t.Errorf("tempo = %d, want %d", in.tempo, wantTempo)
	}

	wantDelay := uint32(2296) // 5 * 44100 / 96, truncated.
	if delay != wantDelay {
		t.Errorf("delay = %d, want %d", delay, wantDelay)
	}
}

func TestFirstPollConsumesLoneDelayByte(t *testing.T) {
	snd := buildSND()
	song := buildMUS(24, 0, 0, 120, 10, 0xFC)

	in, err := New(song, snd, func(byte, byte) {})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	in.Rewind()

	delay, err := in.PollMusic(true)
	if err != nil {
		t.Fatalf("PollMusic(first) = %v", err)
	}

	freq := uint32(24) * 120 / 60
	want := uint32(10) * 44100 / freq
	if delay != want {
		t.Errorf("delay = %d, want %d", delay, want)
	}

	if _, err := in.PollMusic(false); err != nil {
		t.Fatalf("PollMusic(false) end = %v", err)
	}
	if !in.Ended() {
		t.Errorf("expected song to have ended at 0xFC")
	}
}

func TestNoteOnZeroVolumeActsAsNoteOff(t *testing.T) {
	snd := buildSND()
	// Note-on status byte 0x90, note 60, volume 0, a zero delay; then end.
	song := buildMUS(24, 0, 0, 120, 0x90, 60, 0, 0, 0xFC)

	var writes [][2]byte
	in, err := New(song, snd, func(reg, val byte) { writes = append(writes, [2]byte{reg, val}) })
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	in.Rewind()

	if _, err := in.PollMusic(false); err != nil {
		t.Fatalf("PollMusic() = %v", err)
	}

	for _, w := range writes {
		if w[0] == 0xB0 && w[1]&0x20 != 0 {
			t.Errorf("note-on with zero volume should not key the voice on, got %v", writes)
		}
	}
}
