package aptos

import (
	"encoding/binary"
)

// bcsEncoder serializes values in Binary Canonical Serialization form:
// little-endian fixed-width integers, ULEB128 length prefixes for
// variable-length sequences, and ULEB128 indices for enum variants.
type bcsEncoder struct {
	buf []byte
}

func newBCSEncoder() *bcsEncoder {
	return &bcsEncoder{buf: make([]byte, 0, 256)}
}

func (e *bcsEncoder) Uleb128(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v&0x7F)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *bcsEncoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *bcsEncoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *bcsEncoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *bcsEncoder) Bool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// FixedBytes appends raw bytes with no length prefix
func (e *bcsEncoder) FixedBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// Bytes appends a ULEB128 length prefix followed by the bytes
func (e *bcsEncoder) Bytes(b []byte) {
	e.Uleb128(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *bcsEncoder) String(s string) {
	e.Bytes([]byte(s))
}

func (e *bcsEncoder) Address(a AccountAddress) {
	e.FixedBytes(a[:])
}

func (e *bcsEncoder) Result() []byte {
	return e.buf
}

// BCS argument helpers for entry-function call arguments, which are each
// individually BCS-encoded byte blobs.

func bcsU64Arg(v uint64) []byte {
	e := newBCSEncoder()
	e.U64(v)
	return e.Result()
}

func bcsU32Arg(v uint32) []byte {
	e := newBCSEncoder()
	e.U32(v)
	return e.Result()
}

func bcsBytesArg(b []byte) []byte {
	e := newBCSEncoder()
	e.Bytes(b)
	return e.Result()
}

func bcsAddressArg(a AccountAddress) []byte {
	e := newBCSEncoder()
	e.Address(a)
	return e.Result()
}
