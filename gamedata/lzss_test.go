package gamedata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// literalChunk builds an uncompressed LZSS chunk body for want: one control
// byte with every low bit set to 1 (a run of up to 8 literals) followed by
// the literal bytes themselves.
func literalChunk(want string) []byte {
	body := []byte{0xFF}
	body = append(body, want...)
	return body
}

func TestUnpackCompression1RoundTripsLiteralRun(t *testing.T) {
	want := "Hello!\n"

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, uint32(len(want)))
	payload = append(payload, literalChunk(want)...)

	got, err := Unpack(payload, 1)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestUnpackCompression1RejectsTruncatedStream(t *testing.T) {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, 100)
	payload = append(payload, 0xFF, 'h', 'i')

	_, err := Unpack(payload, 1)
	assert.Error(t, err)
}

func TestUnpackCompression2ChainsChunksUntilTerminator(t *testing.T) {
	var payload []byte

	appendChunk := func(want string) {
		body := literalChunk(want)
		header := make([]byte, 4)
		binary.LittleEndian.PutUint16(header[0:], uint16(len(body)+4)) // chunkSize covers the header's own 4 bytes plus the body.
		binary.LittleEndian.PutUint16(header[2:], uint16(len(want)))
		payload = append(payload, header...)
		payload = append(payload, 0, 0) // Reserved field.
		payload = append(payload, body...)
	}

	appendChunk("abc")
	appendChunk("de")
	payload = append(payload, 0xFF, 0xFF, 0, 0) // Terminator: chunkSize 0xFFFF, plus its unread realSize field.

	got, err := Unpack(payload, 2)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(got))
}

func TestUnpackRejectsUnknownCompression(t *testing.T) {
	_, err := Unpack([]byte{1, 2, 3, 4}, 3)
	assert.Error(t, err)
}

func TestUnpackChunkBackReference(t *testing.T) {
	// One literal 'a' (stored at ring[ringInit]), then a back-reference of
	// length 3 starting just past it, into the ring buffer's initial 0x20
	// prelude, reproducing three spaces.
	const off = ringInit + 1
	t1, t2 := byte(off&0xFF), byte((off>>4)&0xF0)
	body := []byte{0b00000001, 'a', t1, t2}

	got, err := unpackChunk(body, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', ' ', ' ', ' '}, got)
}
