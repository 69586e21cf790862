package tensorhttp

import (
	"github.com/yungbote/segbridge/internal/tensor"
)

// The wire format carries dense float32 tensors as base64 little-endian
// payloads next to their shape, so any inference server that can emit
// JSON can act as an upstream. The document itself lives with the tensor
// package; this transport just moves it.

type tensorPayload = tensor.WireTensor

func encodeTensor(t *tensor.Tensor) tensorPayload {
	return tensor.ToWire(t)
}

func decodeTensor(p tensorPayload) (*tensor.Tensor, error) {
	return tensor.FromWire(p)
}
