package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Serialised values start with a one-byte content tag.
const (
	tagJSON   byte = 'j'
	tagVector byte = 'v'
)

var errCorrupt = errors.New("corrupt cache value")

// Encode serialises a value for storage. []float32 is packed as
// little-endian float32 so vectors round-trip bit for bit; every other
// value is JSON.
func Encode(value any) ([]byte, error) {
	if vec, ok := value.([]float32); ok {
		return encodeVector(vec), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache value: %w", err)
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, tagJSON)
	return append(out, data...), nil
}

// Decode deserialises data into dst, which must be a pointer.
// Vector data requires dst to be *[]float32.
func Decode(data []byte, dst any) error {
	if len(data) == 0 {
		return errCorrupt
	}

	switch data[0] {
	case tagVector:
		vec, ok := dst.(*[]float32)
		if !ok {
			return fmt.Errorf("decode vector into %T: %w", dst, errCorrupt)
		}
		v, err := decodeVector(data[1:])
		if err != nil {
			return err
		}
		*vec = v
		return nil
	case tagJSON:
		if err := json.Unmarshal(data[1:], dst); err != nil {
			return fmt.Errorf("decode cache value: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown tag %q: %w", data[0], errCorrupt)
	}
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 1+len(vec)*4)
	buf[0] = tagVector
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[1+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector length %d: %w", len(data), errCorrupt)
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
