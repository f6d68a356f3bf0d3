package vgm

import (
	"encoding/binary"
	"testing"
)

func TestEmptyRecording(t *testing.T) {
	r := NewRecorder()
	out := r.Finish()

	if len(out) != headerSize+1 {
		t.Fatalf("len(out) = %d, want %d", len(out), headerSize+1)
	}
	if out[headerSize] != cmdEnd {
		t.Errorf("last record = 0x%02X, want 0x66", out[headerSize])
	}
}

func TestHeaderFields(t *testing.T) {
	r := NewRecorder()
	r.WriteOPL(0xA0, 0x12)
	r.Wait(441)
	out := r.Finish()

	if string(out[0:4]) != "Vgm " {
		t.Errorf("magic = %q, want \"Vgm \"", out[0:4])
	}

	dataSize := uint32(len(out)) - headerSize
	gotEOF := binary.LittleEndian.Uint32(out[0x04:])
	if gotEOF != headerSize+dataSize-4 {
		t.Errorf("eof offset = %d, want %d", gotEOF, headerSize+dataSize-4)
	}

	if binary.LittleEndian.Uint32(out[0x08:]) != vgmVersion {
		t.Errorf("version = 0x%X, want 0x%X", binary.LittleEndian.Uint32(out[0x08:]), vgmVersion)
	}
	if binary.LittleEndian.Uint32(out[0x18:]) != 441 {
		t.Errorf("total samples = %d, want 441", binary.LittleEndian.Uint32(out[0x18:]))
	}
	if binary.LittleEndian.Uint32(out[0x24:]) != vgmRate {
		t.Errorf("rate = %d, want %d", binary.LittleEndian.Uint32(out[0x24:]), vgmRate)
	}
	if binary.LittleEndian.Uint32(out[0x50:]) != oplClockHz {
		t.Errorf("OPL clock = %d, want %d", binary.LittleEndian.Uint32(out[0x50:]), oplClockHz)
	}
}

func TestWaitSplitsAcrossMaxSamples(t *testing.T) {
	r := NewRecorder()
	r.Wait(70000) // Exceeds the 16-bit 0x61 record limit, must split.
	out := r.Finish()

	if r.totalSamples != 70000 {
		t.Fatalf("totalSamples = %d, want 70000", r.totalSamples)
	}

	// Two wait records (3 bytes each) plus the end marker.
	data := out[headerSize:]
	if data[0] != cmdWait || data[3] != cmdWait {
		t.Fatalf("expected two consecutive wait records, got % X", data)
	}

	n1 := uint16(data[1]) | uint16(data[2])<<8
	n2 := uint16(data[4]) | uint16(data[5])<<8
	if uint32(n1)+uint32(n2) != 70000 {
		t.Errorf("split wait samples sum to %d, want 70000", uint32(n1)+uint32(n2))
	}
	if n1 > maxWaitSamples || n2 > maxWaitSamples {
		t.Errorf("a wait record exceeded the 16-bit limit: %d, %d", n1, n2)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	r := NewRecorder()
	r.WriteOPL(0xA0, 1)

	first := r.Finish()
	second := r.Finish()

	if len(first) != len(second) {
		t.Fatalf("Finish is not idempotent: lengths %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Finish is not idempotent: byte %d differs", i)
		}
	}
}

func TestWriteOPLRecordShape(t *testing.T) {
	r := NewRecorder()
	r.WriteOPL(0xB0, 0x20)
	out := r.Finish()

	data := out[headerSize:]
	if data[0] != cmdOPLWrite || data[1] != 0xB0 || data[2] != 0x20 {
		t.Errorf("OPL write record = % X, want [0x5A 0xB0 0x20]", data[:3])
	}
}
