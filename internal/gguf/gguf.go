// Package gguf reads the metadata section of GGUF model files without
// touching tensor data. Arrays are skipped and only their length is kept, so
// probing a multi-gigabyte model costs a few hundred kilobytes of reads.
package gguf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const magic = "GGUF"

// maxStringLen bounds a single metadata string; anything larger means a
// corrupt header rather than a real value.
const maxStringLen = 16 << 20

// ErrNotGGUF is returned when the file does not start with the GGUF magic.
var ErrNotGGUF = errors.New("gguf: not a GGUF file")

type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// ArrayInfo describes a skipped array value.
type ArrayInfo struct {
	ElemType ValueType
	Len      uint64
}

// Value is one metadata value. Value holds a Go scalar, a string, or an
// ArrayInfo.
type Value struct {
	Type  ValueType
	Value any
}

// Metadata is the decoded header and key/value section.
type Metadata struct {
	Version     uint32
	TensorCount uint64
	KV          map[string]Value
	// Keys preserves file order.
	Keys []string
}

// ReadFile opens path and decodes its metadata.
func ReadFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	md, err := decode(newReader(f, size))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}

// Decode reads metadata from r. Reading stops at the end of the KV section.
func Decode(r io.Reader) (*Metadata, error) {
	return decode(newReader(r, 0))
}

func decode(r *reader) (*Metadata, error) {
	m, err := r.readN(4)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotGGUF
		}
		return nil, err
	}
	if string(m) != magic {
		return nil, ErrNotGGUF
	}
	version, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if version < 2 {
		return nil, fmt.Errorf("gguf: unsupported version %d", version)
	}
	tensorCount, err := r.readU64()
	if err != nil {
		return nil, err
	}
	kvCount, err := r.readU64()
	if err != nil {
		return nil, err
	}
	md := &Metadata{
		Version:     version,
		TensorCount: tensorCount,
		KV:          make(map[string]Value, min(kvCount, 1024)),
	}
	for i := uint64(0); i < kvCount; i++ {
		key, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, err)
		}
		vt, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read value type for %s: %w", key, err)
		}
		val, err := readValue(r, ValueType(vt))
		if err != nil {
			return nil, fmt.Errorf("read value for %s: %w", key, err)
		}
		md.KV[key] = Value{Type: ValueType(vt), Value: val}
		md.Keys = append(md.Keys, key)
	}
	return md, nil
}

func readValue(r *reader, vt ValueType) (any, error) {
	switch vt {
	case TypeUint8:
		return r.readU8()
	case TypeInt8:
		v, err := r.readU8()
		return int8(v), err
	case TypeUint16:
		return r.readU16()
	case TypeInt16:
		v, err := r.readU16()
		return int16(v), err
	case TypeUint32:
		return r.readU32()
	case TypeInt32:
		v, err := r.readU32()
		return int32(v), err
	case TypeUint64:
		return r.readU64()
	case TypeInt64:
		v, err := r.readU64()
		return int64(v), err
	case TypeFloat32:
		return r.readF32()
	case TypeFloat64:
		return r.readF64()
	case TypeBool:
		v, err := r.readU8()
		return v != 0, err
	case TypeString:
		return r.readString()
	case TypeArray:
		et, err := r.readU32()
		if err != nil {
			return nil, err
		}
		n, err := r.readU64()
		if err != nil {
			return nil, err
		}
		if err := skipArray(r, ValueType(et), n); err != nil {
			return nil, err
		}
		return ArrayInfo{ElemType: ValueType(et), Len: n}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %d", uint32(vt))
	}
}

func skipArray(r *reader, et ValueType, n uint64) error {
	if w := fixedWidth(et); w > 0 {
		return r.skip(n * uint64(w))
	}
	for i := uint64(0); i < n; i++ {
		switch et {
		case TypeString:
			l, err := r.readU64()
			if err != nil {
				return err
			}
			if err := r.skip(l); err != nil {
				return err
			}
		case TypeArray:
			if _, err := readValue(r, TypeArray); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported array element type %d", uint32(et))
		}
	}
	return nil
}

func fixedWidth(t ValueType) int {
	switch t {
	case TypeUint8, TypeInt8, TypeBool:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFloat32:
		return 4
	case TypeUint64, TypeInt64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

// String returns a string value.
func (m *Metadata) String(key string) (string, bool) {
	v, ok := m.KV[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

// Uint returns an unsigned integer value of any width.
func (m *Metadata) Uint(key string) (uint64, bool) {
	v, ok := m.KV[key]
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int32:
		if t >= 0 {
			return uint64(t), true
		}
	case int64:
		if t >= 0 {
			return uint64(t), true
		}
	}
	return 0, false
}

// Architecture returns general.architecture or "".
func (m *Metadata) Architecture() string {
	s, _ := m.String("general.architecture")
	return strings.TrimSpace(s)
}

// Name returns general.name or "".
func (m *Metadata) Name() string {
	s, _ := m.String("general.name")
	return strings.TrimSpace(s)
}

// ContextLength returns <arch>.context_length when present.
func (m *Metadata) ContextLength() (uint64, bool) {
	arch := m.Architecture()
	if arch == "" {
		return 0, false
	}
	return m.Uint(arch + ".context_length")
}

// FileType returns the quantization name encoded in general.file_type.
func (m *Metadata) FileType() string {
	v, ok := m.Uint("general.file_type")
	if !ok {
		return ""
	}
	return FileTypeName(v)
}

// FileTypeName maps llama.cpp file type ids to their common names.
func FileTypeName(v uint64) string {
	switch v {
	case 0:
		return "F32"
	case 1:
		return "F16"
	case 2:
		return "Q4_0"
	case 3:
		return "Q4_1"
	case 7:
		return "Q8_0"
	case 8:
		return "Q5_0"
	case 9:
		return "Q5_1"
	case 10:
		return "Q2_K"
	case 11:
		return "Q3_K_S"
	case 12:
		return "Q3_K_M"
	case 13:
		return "Q3_K_L"
	case 14:
		return "Q4_K_S"
	case 15:
		return "Q4_K_M"
	case 16:
		return "Q5_K_S"
	case 17:
		return "Q5_K_M"
	case 18:
		return "Q6_K"
	case 32:
		return "BF16"
	default:
		return fmt.Sprintf("type(%d)", v)
	}
}

// IsGGUF reports whether path starts with the GGUF magic.
func IsGGUF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var buf [4]byte
	if _, err := io.ReadFull(bufio.NewReader(f), buf[:]); err != nil {
		return false
	}
	return string(buf[:]) == magic
}
