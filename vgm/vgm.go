// Package vgm records a sequence of OPL2 register writes and sample waits
// into a VGM 1.50 file. It has no knowledge of AdLib, ADL or MUS — it is
// handed raw (register, value) pairs and wait lengths by an interpreter
// driving an opl.Engine, and produces the on-disk byte layout.
//
// The shape mirrors a streaming WAV writer that patches its length fields
// in at Finish time, except the whole file is built in memory and handed
// back as a []byte rather than seeked back into on disk, since callers
// here (convert.ADL, convert.MUS) want VGM bytes back rather than a write
// sink.
package vgm

import "encoding/binary"

const (
	headerSize = 256

	cmdOPLWrite = 0x5A
	cmdWait     = 0x61
	cmdEnd      = 0x66

	maxWaitSamples = 0xFFFF

	// Fixed VGM header field values for this engine's output: always
	// OPL2-only, version 1.50, 1000 Hz internal rate, 256-byte header.
	vgmVersion  = 0x00000150
	vgmRate     = 1000
	vgmDataOfs  = 0xCC // relative to offset 0x34: 0x34+0xCC == headerSize
	oplClockHz  = 3579545
)

// Recorder accumulates OPL register writes and sample waits in order and
// serializes them into a VGM 1.50 file on Finish.
type Recorder struct {
	data         []byte
	totalSamples uint32
	finished     bool
}

// NewRecorder returns an empty recorder ready to capture one conversion.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// WriteOPL appends one OPL2 register write record. It never fails: any reg
// and val fit in one byte each by construction of the opl.Engine that
// calls it.
func (r *Recorder) WriteOPL(reg, val byte) {
	r.data = append(r.data, cmdOPLWrite, reg, val)
}

// Wait appends one or more 0x61 wait records totaling exactly samples,
// splitting into multiple records if samples exceeds the 16-bit limit of a
// single record. totalSamples accumulates the full amount regardless of
// how many records it took.
func (r *Recorder) Wait(samples uint32) {
	r.totalSamples += samples

	for samples > 0 {
		n := samples
		if n > maxWaitSamples {
			n = maxWaitSamples
		}
		r.data = append(r.data, cmdWait, byte(n), byte(n>>8))
		samples -= n
	}
}

// Finish appends the end-of-stream marker and serializes the complete VGM
// file: a 256-byte header followed by every record in the order recorded.
// Calling Finish more than once returns the same bytes; it does not
// double-append the end marker.
func (r *Recorder) Finish() []byte {
	if !r.finished {
		r.data = append(r.data, cmdEnd)
		r.finished = true
	}

	out := make([]byte, headerSize+len(r.data))
	writeHeader(out[:headerSize], uint32(len(r.data)), r.totalSamples)
	copy(out[headerSize:], r.data)

	return out
}

func writeHeader(h []byte, dataSize, totalSamples uint32) {
	copy(h[0x00:0x04], "Vgm ")
	binary.LittleEndian.PutUint32(h[0x04:], headerSize+dataSize-4)
	binary.LittleEndian.PutUint32(h[0x08:], vgmVersion)
	binary.LittleEndian.PutUint32(h[0x18:], totalSamples)
	binary.LittleEndian.PutUint32(h[0x24:], vgmRate)
	binary.LittleEndian.PutUint32(h[0x34:], vgmDataOfs)
	binary.LittleEndian.PutUint32(h[0x50:], oplClockHz)
}
