package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeHelpers(t *testing.T) {

	assert.Equal(t, 0, BytesFor(0))
	assert.Equal(t, 1, BytesFor(1))
	assert.Equal(t, 1, BytesFor(8))
	assert.Equal(t, 2, BytesFor(9))

	assert.Equal(t, 2, BufferLen(0, 16))
	assert.Equal(t, 3, BufferLen(4, 16))
	assert.Equal(t, 1, BufferLen(12, 4))
}

func TestCopyFromOffsetAligned(t *testing.T) {

	src := []byte{0x78, 0x56, 0x34, 0x12}
	dst := make([]byte, 4)
	CopyFromOffset(dst, src, 4, 0)
	assert.Equal(t, src, dst)

	// Whole-byte offsets skip bytes
	dst = make([]byte, 2)
	CopyFromOffset(dst, src, 2, 16)
	assert.Equal(t, []byte{0x34, 0x12}, dst)
}

func TestCopyFromOffsetShifted(t *testing.T) {

	// 16 bits at bit offset 4: low nibble of byte 0 is padding
	src := []byte{0x0F, 0xBC, 0x0A}
	dst := make([]byte, 2)
	CopyFromOffset(dst, src, 2, 4)
	assert.Equal(t, []byte{0xC0, 0xAB}, dst)
}

func TestCopyToOffsetRoundTrip(t *testing.T) {

	for offset := 0; offset < 8; offset++ {
		value := []byte{0xC0, 0xAB}
		dst := make([]byte, BufferLen(offset, 16))
		CopyToOffset(dst, value, 2, offset)
		back := make([]byte, 2)
		CopyFromOffset(back, dst, 2, offset)
		assert.Equal(t, value, back, "offset %d", offset)
	}
}

func TestCopyToOffsetPreservesBoundaries(t *testing.T) {

	dst := []byte{0xFF, 0xFF, 0xFF}
	CopyToOffset(dst, []byte{0x00, 0x00}, 2, 4)
	// Low nibble of the first byte and high nibble of the last byte survive
	assert.Equal(t, []byte{0x0F, 0x00, 0xF0}, dst)
}

func TestGetBitsMasksTail(t *testing.T) {

	data := []byte{0xFF, 0xFF}
	out := make([]byte, 1)
	GetBits(out, data, 3, 4)
	assert.Equal(t, []byte{0x0F}, out)

	out = make([]byte, 1)
	GetBits(out, data, 7, 1)
	assert.Equal(t, []byte{0x01}, out)
}

func TestPutBitsPoisonedBuffer(t *testing.T) {

	// Writing at any sub-byte offset leaves bits outside the window alone
	for offset := 0; offset < 8; offset++ {
		poison := make([]byte, 4)
		for i := range poison {
			poison[i] = 0xA5
		}
		PutBits(poison, []byte{0xFF, 0xFF}, offset, 13)
		back := make([]byte, 2)
		GetBits(back, poison, offset, 13)
		assert.Equal(t, []byte{0xFF, 0x1F}, back, "offset %d", offset)

		// Reconstruct expectation bit by bit
		for bit := 0; bit < 32; bit++ {
			expected := (byte(0xA5) >> (bit % 8)) & 1
			if bit >= offset && bit < offset+13 {
				expected = 1
			}
			actual := (poison[bit/8] >> (bit % 8)) & 1
			assert.Equal(t, expected, actual, "offset %d bit %d", offset, bit)
		}
	}
}

func TestMergeAligned(t *testing.T) {

	// Source shares the destination's alignment; only the window moves
	dst := []byte{0x0F, 0x00, 0xF0}
	src := []byte{0xA0, 0x5A, 0x0A}
	MergeAligned(dst, src, 4, 16)
	assert.Equal(t, []byte{0xAF, 0x5A, 0xFA}, dst)

	// Aligned byte window
	dst = []byte{0xFF, 0xFF}
	MergeAligned(dst, []byte{0x12, 0x34}, 0, 16)
	assert.Equal(t, []byte{0x12, 0x34}, dst)

	// Single-bit window
	dst = []byte{0x00}
	MergeAligned(dst, []byte{0xFF}, 3, 1)
	assert.Equal(t, []byte{0x08}, dst)
}
