package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// maxArrayLen bounds metadata arrays. GPT-2 style vocabularies hold about
// 50k tokens and merges; larger models stay well below this.
const maxArrayLen = 100_000_000

// Parse reads the header and metadata of a GGUF file. Reading stops at the
// first tensor descriptor.
func Parse(r io.Reader) (*File, error) {
	p := &parser{
		r:     bufio.NewReader(r),
		order: binary.LittleEndian, // Default to little-endian
	}
	return p.parse()
}

// ParseFile parses the metadata of a GGUF file on disk.
//
//nolint:gosec // G304: path comes from trusted caller, not user input.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close() // Ignore close error on read-only file.
	}()

	gguf, err := Parse(f)
	if err != nil {
		return nil, err
	}
	gguf.FilePath = path

	return gguf, nil
}

type parser struct {
	r     io.Reader
	order binary.ByteOrder
}

func (p *parser) parse() (*File, error) {
	file := &File{
		Metadata: make(map[string]any),
	}

	if err := p.parseHeader(&file.Header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	for i := uint64(0); i < file.Header.MetadataKVCount; i++ {
		kv, err := p.parseMetadataKV()
		if err != nil {
			return nil, fmt.Errorf("parse metadata kv %d: %w", i, err)
		}
		file.Metadata[kv.Key] = kv.Value
	}

	return file, nil
}

func (p *parser) parseHeader(h *Header) error {
	if err := binary.Read(p.r, p.order, &h.Magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}

	// The magic doubles as a byte order mark.
	switch h.Magic {
	case MagicGGUFLE:
		p.order = binary.LittleEndian
	case MagicGGUFBE:
		p.order = binary.BigEndian
	default:
		return fmt.Errorf("invalid magic: 0x%08X (expected GGUF)", h.Magic)
	}

	if err := binary.Read(p.r, p.order, &h.Version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	// Version 1 used 32-bit counts and lengths; only 2 and 3 are readable here.
	if h.Version < Version2 || h.Version > Version3 {
		return fmt.Errorf("unsupported version: %d (supported: 2-3)", h.Version)
	}

	if err := binary.Read(p.r, p.order, &h.TensorCount); err != nil {
		return fmt.Errorf("read tensor count: %w", err)
	}
	if err := binary.Read(p.r, p.order, &h.MetadataKVCount); err != nil {
		return fmt.Errorf("read metadata kv count: %w", err)
	}

	return nil
}

func (p *parser) parseMetadataKV() (*MetadataKV, error) {
	key, err := readString(p.r, p.order)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	var valueType uint32
	if err := binary.Read(p.r, p.order, &valueType); err != nil {
		return nil, fmt.Errorf("read value type for %q: %w", key, err)
	}

	value, err := p.parseValue(ValueType(valueType))
	if err != nil {
		return nil, fmt.Errorf("read value for %q: %w", key, err)
	}

	return &MetadataKV{Key: key, ValueType: ValueType(valueType), Value: value}, nil
}

// parseValue reads a metadata value of the given type.
func (p *parser) parseValue(t ValueType) (any, error) {
	switch t {
	case ValueTypeUint8:
		return readScalar[uint8](p)
	case ValueTypeInt8:
		return readScalar[int8](p)
	case ValueTypeUint16:
		return readScalar[uint16](p)
	case ValueTypeInt16:
		return readScalar[int16](p)
	case ValueTypeUint32:
		return readScalar[uint32](p)
	case ValueTypeInt32:
		return readScalar[int32](p)
	case ValueTypeFloat32:
		return readScalar[float32](p)
	case ValueTypeUint64:
		return readScalar[uint64](p)
	case ValueTypeInt64:
		return readScalar[int64](p)
	case ValueTypeFloat64:
		return readScalar[float64](p)
	case ValueTypeBool:
		v, err := readScalar[uint8](p)
		return v != 0, err
	case ValueTypeString:
		return readString(p.r, p.order)
	case ValueTypeArray:
		return p.parseArray()
	default:
		return nil, fmt.Errorf("unknown value type: %d", t)
	}
}

func (p *parser) parseArray() (any, error) {
	var elemType uint32
	if err := binary.Read(p.r, p.order, &elemType); err != nil {
		return nil, fmt.Errorf("read array element type: %w", err)
	}

	var length uint64
	if err := binary.Read(p.r, p.order, &length); err != nil {
		return nil, fmt.Errorf("read array length: %w", err)
	}
	if length > maxArrayLen {
		return nil, fmt.Errorf("array too large: %d elements", length)
	}

	switch vt := ValueType(elemType); vt {
	case ValueTypeUint8:
		return readSlice[uint8](p, length)
	case ValueTypeInt8:
		return readSlice[int8](p, length)
	case ValueTypeUint16:
		return readSlice[uint16](p, length)
	case ValueTypeInt16:
		return readSlice[int16](p, length)
	case ValueTypeUint32:
		return readSlice[uint32](p, length)
	case ValueTypeInt32:
		return readSlice[int32](p, length)
	case ValueTypeFloat32:
		return readSlice[float32](p, length)
	case ValueTypeUint64:
		return readSlice[uint64](p, length)
	case ValueTypeInt64:
		return readSlice[int64](p, length)
	case ValueTypeFloat64:
		return readSlice[float64](p, length)
	case ValueTypeBool:
		raw, err := readSlice[uint8](p, length)
		if err != nil {
			return nil, err
		}
		arr := make([]bool, len(raw))
		for i, v := range raw {
			arr[i] = v != 0
		}
		return arr, nil
	case ValueTypeString:
		arr := make([]string, length)
		for i := range arr {
			s, err := readString(p.r, p.order)
			if err != nil {
				return nil, fmt.Errorf("read array element %d: %w", i, err)
			}
			arr[i] = s
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unsupported array element type: %s", vt)
	}
}

type scalar interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64
}

func readScalar[T scalar](p *parser) (T, error) {
	var v T
	err := binary.Read(p.r, p.order, &v)
	return v, err
}

func readSlice[T scalar](p *parser, length uint64) ([]T, error) {
	arr := make([]T, length)
	if err := binary.Read(p.r, p.order, arr); err != nil {
		return nil, err
	}
	return arr, nil
}
