package gamedata

import (
	"encoding/binary"

	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
)

const (
	ringSize = 4096
	ringInit = 4078
)

// Unpack decompresses data according to one of the two archive member
// compression schemes: 1 is a single LZSS chunk prefixed by its declared
// output size, 2 is a chain of independently framed LZSS chunks terminated
// by a chunkSize of 0xFFFF.
func Unpack(data []byte, compression uint8) ([]byte, error) {
	switch compression {
	case 1:
		return unpackCompression1(data)
	case 2:
		return unpackCompression2(data)
	default:
		return nil, cokerr.New(cokerr.Format, "invalid compression (%d)", compression)
	}
}

func unpackCompression1(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, cokerr.New(cokerr.Read, "compressed payload too small for size prefix")
	}

	size := binary.LittleEndian.Uint32(data[:4])
	return unpackChunk(data[4:], int(size))
}

func unpackCompression2(data []byte) ([]byte, error) {
	var out []byte
	pos := 0

	for {
		chunkStart := pos
		if pos+4 > len(data) {
			return nil, cokerr.New(cokerr.Read, "truncated compression-2 chunk header")
		}

		chunkSize := binary.LittleEndian.Uint16(data[pos:])
		realSize := binary.LittleEndian.Uint16(data[pos+2:])
		pos += 4

		if chunkSize == 0xFFFF {
			break
		}
		if chunkSize < 4 {
			return nil, cokerr.New(cokerr.Format, "invalid chunk size (%d)", chunkSize)
		}

		pos += 2 // Reserved field between the chunk header and the LZSS body.
		if pos > len(data) {
			return nil, cokerr.New(cokerr.Read, "truncated compression-2 chunk body")
		}

		decoded, err := unpackChunk(data[pos:], int(realSize))
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)

		pos = chunkStart + int(chunkSize) + 2
	}

	return out, nil
}

// unpackChunk runs the LZSS variant used throughout the Coktel archive
// formats over src, producing exactly size bytes. The 4096-byte ring
// buffer is fresh for every chunk, pre-filled with 0x20 (space) with the
// write cursor starting at 4078 — load-bearing for members that
// back-reference into that prelude before having written anything of their
// own.
func unpackChunk(src []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, cokerr.New(cokerr.Format, "invalid LZSS output size (%d)", size)
	}

	dest := make([]byte, 0, size)

	var ring [ringSize]byte
	for i := range ring {
		ring[i] = 0x20
	}
	ringPos := ringInit

	pos := 0
	readByte := func() (byte, error) {
		if pos >= len(src) {
			return 0, cokerr.New(cokerr.Read, "LZSS stream exhausted before reaching declared size")
		}
		b := src[pos]
		pos++
		return b, nil
	}

	var cmd uint16
	for len(dest) < size {
		cmd >>= 1
		if cmd&0x0100 == 0 {
			b, err := readByte()
			if err != nil {
				return nil, err
			}
			cmd = uint16(b) | 0xFF00
		}

		if cmd&1 != 0 {
			b, err := readByte()
			if err != nil {
				return nil, err
			}

			dest = append(dest, b)
			ring[ringPos] = b
			ringPos = (ringPos + 1) % ringSize
			continue
		}

		t1, err := readByte()
		if err != nil {
			return nil, err
		}
		t2, err := readByte()
		if err != nil {
			return nil, err
		}

		off := int(t1) | (int(t2&0xF0) << 4)
		length := int(t2&0x0F) + 3

		for i := 0; i < length; i++ {
			if len(dest) >= size {
				return dest, nil
			}

			b := ring[(off+i)%ringSize]
			dest = append(dest, b)
			ring[ringPos] = b
			ringPos = (ringPos + 1) % ringSize
		}
	}

	return dest, nil
}
