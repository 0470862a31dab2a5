package solana

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// maxCompactLenBytes is the maximum width of a compact-u16 encoded length.
const maxCompactLenBytes = 3

// putCompactLen writes n using the compact-u16 ("shortvec") variable length
// encoding: seven bits per byte, least significant group first, with the high
// bit set on every byte except the last.
func putCompactLen(w io.ByteWriter, n int) error {
	if n < 0 || n > math.MaxUint16 {
		return errors.Errorf("compact length out of range: %d", n)
	}

	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return w.WriteByte(b)
		}
		if err := w.WriteByte(b | 0x80); err != nil {
			return err
		}
	}
}

// getCompactLen reads a compact-u16 encoded length.
func getCompactLen(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < maxCompactLenBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		val |= int(b&0x7f) << (i * 7)
		if b&0x80 == 0 {
			if val > math.MaxUint16 {
				return 0, errors.Errorf("compact length out of range: %d", val)
			}
			return val, nil
		}
	}

	return 0, errors.Errorf("invalid compact length (max %d bytes)", maxCompactLenBytes)
}
