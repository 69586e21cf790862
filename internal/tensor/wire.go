package tensor

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// WireTensor is the JSON form of a dense float32 tensor: shape next to a
// base64 little-endian payload. Inference upstreams and the artifact
// store both speak this document.
type WireTensor struct {
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
	Data  string `json:"data"`
}

// ToWire encodes t for JSON transport.
func ToWire(t *Tensor) WireTensor {
	data := t.Data()
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return WireTensor{
		Shape: t.Shape(),
		DType: "float32",
		Data:  base64.StdEncoding.EncodeToString(raw),
	}
}

// FromWire decodes a wire document back into a tensor.
func FromWire(w WireTensor) (*Tensor, error) {
	if w.DType != "" && w.DType != "float32" {
		return nil, fmt.Errorf("tensor: unsupported dtype %q", w.DType)
	}
	n, err := ElementCount(w.Shape)
	if err != nil {
		return nil, fmt.Errorf("tensor: bad wire shape: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, fmt.Errorf("tensor: bad base64 payload: %w", err)
	}
	if len(raw) != 4*n {
		return nil, fmt.Errorf("tensor: payload is %d bytes, shape %v wants %d", len(raw), w.Shape, 4*n)
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return New(w.Shape, data)
}
