package tensor

import (
	"encoding/json"
	"math"
	"testing"
)

func TestWireRoundTripPreservesBits(t *testing.T) {
	in, err := New([]int{1, 2, 3}, []float32{
		0, -1.5, 3.25,
		float32(math.Inf(1)),
		float32(math.NaN()),
		float32(math.Copysign(0, -1)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	doc, err := json.Marshal(ToWire(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var w WireTensor
	if err := json.Unmarshal(doc, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.DType != "float32" {
		t.Fatalf("dtype %q", w.DType)
	}
	out, err := FromWire(w)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if !in.SameShape(out) {
		t.Fatalf("shape changed: %v vs %v", in.Shape(), out.Shape())
	}
	for i := range in.Data() {
		// Bit equality so NaN payloads survive too.
		if math.Float32bits(in.Data()[i]) != math.Float32bits(out.Data()[i]) {
			t.Fatalf("element %d: %v != %v", i, in.Data()[i], out.Data()[i])
		}
	}
}

func TestFromWireAcceptsMissingDType(t *testing.T) {
	in, err := Full([]int{1, 1, 2}, 0.5)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	w := ToWire(in)
	w.DType = ""
	if _, err := FromWire(w); err != nil {
		t.Fatalf("FromWire without dtype: %v", err)
	}
}

func TestFromWireRejectsBadDocuments(t *testing.T) {
	good := ToWire(mustFull(t, []int{1, 1, 2}, 1))

	cases := []struct {
		name   string
		mutate func(w *WireTensor)
	}{
		{"wrong_dtype", func(w *WireTensor) { w.DType = "float64" }},
		{"zero_dim", func(w *WireTensor) { w.Shape = []int{1, 0, 2} }},
		{"negative_dim", func(w *WireTensor) { w.Shape = []int{-1, 2} }},
		{"bad_base64", func(w *WireTensor) { w.Data = "!!!" }},
		{"short_payload", func(w *WireTensor) { w.Shape = []int{1, 1, 3} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := good
			tc.mutate(&w)
			if _, err := FromWire(w); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func mustFull(t *testing.T, shape []int, v float32) *Tensor {
	t.Helper()
	out, err := Full(shape, v)
	if err != nil {
		t.Fatalf("Full(%v): %v", shape, err)
	}
	return out
}
