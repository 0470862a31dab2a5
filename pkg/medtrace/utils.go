package medtrace

import (
	"crypto/ed25519"
	"unicode/utf8"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/solana/binary"
)

func putKey(dst []byte, v ed25519.PublicKey, offset *int) {
	binary.PutKey32(dst, v, offset)
}
func getKey(src []byte, dst *ed25519.PublicKey, offset *int) error {
	return binary.GetKey32(src, dst, offset)
}

func putString(dst []byte, v string, offset *int) {
	binary.PutUint32(dst, uint32(len(v)), offset)
	binary.PutBytes(dst, []byte(v), offset)
}
func getString(src []byte, dst *string, offset *int) error {
	var length uint32
	if err := binary.GetUint32(src, &length, offset); err != nil {
		return err
	}
	if uint64(length) > uint64(len(src)-*offset) {
		return errors.Wrapf(binary.ErrShortBuffer, "string length %d", length)
	}

	var raw []byte
	if err := binary.GetBytes(src, &raw, int(length), offset); err != nil {
		return err
	}
	if !utf8.Valid(raw) {
		return errors.New("invalid utf-8 string")
	}

	*dst = string(raw)
	return nil
}

func putInt64(dst []byte, v int64, offset *int) {
	binary.PutInt64(dst, v, offset)
}
func getInt64(src []byte, dst *int64, offset *int) error {
	return binary.GetInt64(src, dst, offset)
}

func putUint32(dst []byte, v uint32, offset *int) {
	binary.PutUint32(dst, v, offset)
}
func getUint32(src []byte, dst *uint32, offset *int) error {
	return binary.GetUint32(src, dst, offset)
}

func putBool(dst []byte, v bool, offset *int) {
	binary.PutBool(dst, v, offset)
}
func getBool(src []byte, dst *bool, offset *int) error {
	return binary.GetBool(src, dst, offset)
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
