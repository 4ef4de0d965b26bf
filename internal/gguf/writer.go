package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

// Write encodes a tensor-less GGUF v3 file holding kvs, in order.
//
// Values must be one of the Go types Parse produces: the fixed-size numeric
// types, bool, string, or slices of those.
func Write(w io.Writer, kvs []MetadataKV) error {
	bw := bufio.NewWriter(w)
	order := binary.LittleEndian

	header := Header{
		Magic:           MagicGGUFLE,
		Version:         Version3,
		MetadataKVCount: uint64(len(kvs)),
	}
	if err := binary.Write(bw, order, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, kv := range kvs {
		if err := writeKV(bw, order, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("write %q: %w", kv.Key, err)
		}
	}

	return bw.Flush()
}

func writeKV(w io.Writer, order binary.ByteOrder, key string, value any) error {
	if err := writeString(w, order, key); err != nil {
		return err
	}

	switch v := value.(type) {
	case string:
		if err := binary.Write(w, order, uint32(ValueTypeString)); err != nil {
			return err
		}
		return writeString(w, order, v)
	case bool:
		var b uint8
		if v {
			b = 1
		}
		return writeTyped(w, order, ValueTypeBool, b)
	case []string:
		if err := writeArrayHeader(w, order, ValueTypeString, len(v)); err != nil {
			return err
		}
		for _, s := range v {
			if err := writeString(w, order, s); err != nil {
				return err
			}
		}
		return nil
	case []bool:
		if err := writeArrayHeader(w, order, ValueTypeBool, len(v)); err != nil {
			return err
		}
		raw := make([]uint8, len(v))
		for i, b := range v {
			if b {
				raw[i] = 1
			}
		}
		return binary.Write(w, order, raw)
	}

	if vt, ok := scalarType(value); ok {
		return writeTyped(w, order, vt, value)
	}
	if vt, ok := sliceType(value); ok {
		if err := writeArrayHeader(w, order, vt, reflect.ValueOf(value).Len()); err != nil {
			return err
		}
		return binary.Write(w, order, value)
	}

	return fmt.Errorf("unsupported value type %T", value)
}

func writeTyped(w io.Writer, order binary.ByteOrder, vt ValueType, v any) error {
	if err := binary.Write(w, order, uint32(vt)); err != nil {
		return err
	}
	return binary.Write(w, order, v)
}

func writeArrayHeader(w io.Writer, order binary.ByteOrder, elem ValueType, n int) error {
	if err := binary.Write(w, order, uint32(ValueTypeArray)); err != nil {
		return err
	}
	if err := binary.Write(w, order, uint32(elem)); err != nil {
		return err
	}
	return binary.Write(w, order, uint64(n)) //nolint:gosec // G115: n is a slice length.
}

func writeString(w io.Writer, order binary.ByteOrder, s string) error {
	if err := binary.Write(w, order, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func scalarType(v any) (ValueType, bool) {
	switch v.(type) {
	case uint8:
		return ValueTypeUint8, true
	case int8:
		return ValueTypeInt8, true
	case uint16:
		return ValueTypeUint16, true
	case int16:
		return ValueTypeInt16, true
	case uint32:
		return ValueTypeUint32, true
	case int32:
		return ValueTypeInt32, true
	case float32:
		return ValueTypeFloat32, true
	case uint64:
		return ValueTypeUint64, true
	case int64:
		return ValueTypeInt64, true
	case float64:
		return ValueTypeFloat64, true
	}
	return 0, false
}

func sliceType(v any) (ValueType, bool) {
	switch v.(type) {
	case []uint8:
		return ValueTypeUint8, true
	case []int8:
		return ValueTypeInt8, true
	case []uint16:
		return ValueTypeUint16, true
	case []int16:
		return ValueTypeInt16, true
	case []uint32:
		return ValueTypeUint32, true
	case []int32:
		return ValueTypeInt32, true
	case []float32:
		return ValueTypeFloat32, true
	case []uint64:
		return ValueTypeUint64, true
	case []int64:
		return ValueTypeInt64, true
	case []float64:
		return ValueTypeFloat64, true
	}
	return 0, false
}
