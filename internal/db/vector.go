package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector packs a vector as little-endian FLOAT32 bytes, the layout FT vector fields expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector unpacks bytes produced by EncodeVector.
func DecodeVector(raw string) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	b := []byte(raw)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
