package services

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/yungbote/segbridge/internal/platform/logger"
	"github.com/yungbote/segbridge/internal/tensor"
)

func TestPreviewRenderClassIndexPlane(t *testing.T) {
	ps := &previewService{log: logger.Noop(), palette: defaultPalette()}

	// 300x300 is above the upscale floor, so pixels land untouched.
	const h, w = 300, 300
	data := make([]float32, h*w)
	data[10*w+20] = 3
	pred, err := tensor.New([]int{1, 1, h, w}, data)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buf, err := ps.Render(pred, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if got := img.Bounds(); got.Dx() != w || got.Dy() != h {
		t.Fatalf("bounds = %dx%d, want %dx%d", got.Dx(), got.Dy(), w, h)
	}

	pal := defaultPalette()
	if !pixelNear(t, img.At(20, 10), pal[3]) {
		t.Fatalf("pixel (20,10) = %v, want class 3 color %v", img.At(20, 10), pal[3])
	}
	if !pixelNear(t, img.At(0, 0), pal[0]) {
		t.Fatalf("pixel (0,0) = %v, want background %v", img.At(0, 0), pal[0])
	}
}

func TestPreviewRenderPicksMiddleSlice(t *testing.T) {
	ps := &previewService{log: logger.Noop(), palette: defaultPalette()}

	// Three slices; only the middle one carries class 1. The rendered
	// plane must be uniformly class 1, scaled or not.
	const d, h, w = 3, 2, 2
	data := make([]float32, d*h*w)
	for i := 0; i < h*w; i++ {
		data[h*w+i] = 1
	}
	pred, err := tensor.New([]int{1, 1, d, h, w}, data)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buf, err := ps.Render(pred, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("bounds = %dx%d, want 32x32", b.Dx(), b.Dy())
	}
	pal := defaultPalette()
	if !pixelNear(t, img.At(b.Dx()/2, b.Dy()/2), pal[1]) {
		t.Fatalf("center pixel = %v, want class 1 color %v", img.At(b.Dx()/2, b.Dy()/2), pal[1])
	}
}

func TestPreviewRenderCollapsesOneHot(t *testing.T) {
	ps := &previewService{log: logger.Noop(), palette: defaultPalette()}

	const h, w = 300, 300
	data := make([]float32, 3*h*w)
	// Channel 0 on everywhere except one pixel claimed by channel 2.
	for i := 0; i < h*w; i++ {
		data[i] = 1
	}
	data[5*w+7] = 0
	data[2*h*w+5*w+7] = 1
	pred, err := tensor.New([]int{1, 3, h, w}, data)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buf, err := ps.Render(pred, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}

	pal := defaultPalette()
	if !pixelNear(t, img.At(7, 5), pal[2]) {
		t.Fatalf("pixel (7,5) = %v, want class 2 color %v", img.At(7, 5), pal[2])
	}
	if !pixelNear(t, img.At(100, 100), pal[0]) {
		t.Fatalf("pixel (100,100) = %v, want class 0 color %v", img.At(100, 100), pal[0])
	}
}

func TestPreviewRenderRejectsBadShapes(t *testing.T) {
	ps := &previewService{log: logger.Noop(), palette: defaultPalette()}

	flat, err := tensor.New([]int{4}, make([]float32, 4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ps.Render(flat, ""); err == nil {
		t.Fatalf("Render accepted rank-1 input")
	}

	noPlane, err := tensor.New([]int{2, 1}, make([]float32, 2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ps.Render(noPlane, ""); err == nil {
		t.Fatalf("Render accepted input without a spatial plane")
	}

	if _, err := ps.Render(nil, ""); err == nil {
		t.Fatalf("Render accepted nil input")
	}
}

func TestDefaultPaletteHasBackgroundFirst(t *testing.T) {
	pal := defaultPalette()
	if len(pal) < 4 {
		t.Fatalf("palette too small: %d entries", len(pal))
	}
	if pal[0].R != 0 || pal[0].G != 0 || pal[0].B != 0 {
		t.Fatalf("palette[0] = %v, want black background", pal[0])
	}
}

// pixelNear allows one count of tolerance per channel for scaler and
// codec rounding.
func pixelNear(t *testing.T, got, want color.Color) bool {
	t.Helper()
	gr, gg, gb, _ := got.RGBA()
	wr, wg, wb, _ := want.RGBA()
	near := func(a, b uint32) bool {
		ai, bi := int(a>>8), int(b>>8)
		if ai < bi {
			ai, bi = bi, ai
		}
		return ai-bi <= 1
	}
	return near(gr, wr) && near(gg, wg) && near(gb, wb)
}
