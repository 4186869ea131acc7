package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// KV is one entry written by Encode.
type KV struct {
	Key   string
	Value any
}

// Encode writes a GGUF v3 header with the given metadata and no tensors.
// Supported values: string, bool, uint8..uint64, int8..int64, float32,
// float64 and []string. Used to build fixtures and placeholder models.
func Encode(w io.Writer, kvs []KV) error {
	ew := &errWriter{w: w}
	ew.bytes([]byte(magic))
	ew.u32(3)
	ew.u64(0)
	ew.u64(uint64(len(kvs)))
	for _, kv := range kvs {
		ew.str(kv.Key)
		if err := ew.value(kv.Value); err != nil {
			return fmt.Errorf("gguf: encode %s: %w", kv.Key, err)
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *errWriter) u8(v uint8) { e.bytes([]byte{v}) }

func (e *errWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.bytes(b[:])
}

func (e *errWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.bytes(b[:])
}

func (e *errWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.bytes(b[:])
}

func (e *errWriter) str(s string) {
	e.u64(uint64(len(s)))
	e.bytes([]byte(s))
}

func (e *errWriter) value(v any) error {
	switch t := v.(type) {
	case string:
		e.u32(uint32(TypeString))
		e.str(t)
	case bool:
		e.u32(uint32(TypeBool))
		if t {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case uint8:
		e.u32(uint32(TypeUint8))
		e.u8(t)
	case int8:
		e.u32(uint32(TypeInt8))
		e.u8(uint8(t))
	case uint16:
		e.u32(uint32(TypeUint16))
		e.u16(t)
	case int16:
		e.u32(uint32(TypeInt16))
		e.u16(uint16(t))
	case uint32:
		e.u32(uint32(TypeUint32))
		e.u32(t)
	case int32:
		e.u32(uint32(TypeInt32))
		e.u32(uint32(t))
	case uint64:
		e.u32(uint32(TypeUint64))
		e.u64(t)
	case int64:
		e.u32(uint32(TypeInt64))
		e.u64(uint64(t))
	case float32:
		e.u32(uint32(TypeFloat32))
		e.u32(math.Float32bits(t))
	case float64:
		e.u32(uint32(TypeFloat64))
		e.u64(math.Float64bits(t))
	case []string:
		e.u32(uint32(TypeArray))
		e.u32(uint32(TypeString))
		e.u64(uint64(len(t)))
		for _, s := range t {
			e.str(s)
		}
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}
