package binary

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when a read would run past the end of the source
// buffer.
var ErrShortBuffer = errors.New("short buffer")

// The Put helpers write at dst[*offset:] and advance offset. The caller sizes
// dst up front, so they panic on overflow like the encoding/binary helpers.
//
// The Get helpers read at src[*offset:], advance offset and return
// ErrShortBuffer instead of panicking, since src is untrusted account or
// instruction data.

func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst[*offset:*offset+ed25519.PublicKeySize], src)
	*offset += ed25519.PublicKeySize
}

func PutBytes(dst []byte, src []byte, offset *int) {
	copy(dst[*offset:], src)
	*offset += len(src)
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], v)
	*offset += 8
}

func PutInt64(dst []byte, v int64, offset *int) {
	PutUint64(dst, uint64(v), offset)
}

func PutFloat64(dst []byte, v float64, offset *int) {
	PutUint64(dst, math.Float64bits(v), offset)
}

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst[*offset:], v)
	*offset += 4
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset += 1
}

func PutBool(dst []byte, v bool, offset *int) {
	if v {
		PutUint8(dst, 1, offset)
		return
	}
	PutUint8(dst, 0, offset)
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) error {
	if err := ensure(src, *offset, ed25519.PublicKeySize); err != nil {
		return err
	}
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src[*offset:])
	*offset += ed25519.PublicKeySize
	return nil
}

func GetBytes(src []byte, dst *[]byte, n int, offset *int) error {
	if err := ensure(src, *offset, n); err != nil {
		return err
	}
	*dst = make([]byte, n)
	copy(*dst, src[*offset:])
	*offset += n
	return nil
}

func GetUint64(src []byte, dst *uint64, offset *int) error {
	if err := ensure(src, *offset, 8); err != nil {
		return err
	}
	*dst = binary.LittleEndian.Uint64(src[*offset:])
	*offset += 8
	return nil
}

func GetInt64(src []byte, dst *int64, offset *int) error {
	var v uint64
	if err := GetUint64(src, &v, offset); err != nil {
		return err
	}
	*dst = int64(v)
	return nil
}

func GetFloat64(src []byte, dst *float64, offset *int) error {
	var v uint64
	if err := GetUint64(src, &v, offset); err != nil {
		return err
	}
	*dst = math.Float64frombits(v)
	return nil
}

func GetUint32(src []byte, dst *uint32, offset *int) error {
	if err := ensure(src, *offset, 4); err != nil {
		return err
	}
	*dst = binary.LittleEndian.Uint32(src[*offset:])
	*offset += 4
	return nil
}

func GetUint8(src []byte, dst *uint8, offset *int) error {
	if err := ensure(src, *offset, 1); err != nil {
		return err
	}
	*dst = src[*offset]
	*offset += 1
	return nil
}

// GetBool reads a single byte flag. Any value other than 0 or 1 is rejected.
func GetBool(src []byte, dst *bool, offset *int) error {
	var v uint8
	if err := GetUint8(src, &v, offset); err != nil {
		return err
	}
	switch v {
	case 0:
		*dst = false
	case 1:
		*dst = true
	default:
		*offset -= 1
		return errors.Errorf("invalid bool value: %d", v)
	}
	return nil
}

func ensure(src []byte, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(src) {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, offset, len(src))
	}
	return nil
}
