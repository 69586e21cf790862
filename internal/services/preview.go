package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"gorm.io/gorm"

	"github.com/yungbote/segbridge/internal/data/repos/runs"
	types "github.com/yungbote/segbridge/internal/domain"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/logger"
	"github.com/yungbote/segbridge/internal/postprocess"
	"github.com/yungbote/segbridge/internal/tensor"
)

// PreviewService renders a quick-look PNG of an aggregated segmentation:
// the middle axial slice of the first batch item, one palette color per
// class. Previews are decoration for run inspection, never an input to
// scoring.
type PreviewService interface {
	Render(pred *tensor.Tensor, label string) (bytes.Buffer, error)
	CreateAndUploadPreview(ctx context.Context, tx *gorm.DB, result *types.SampleResult, pred *tensor.Tensor) error
}

type previewService struct {
	log        *logger.Logger
	resultRepo runs.ResultRepo
	store      artifacts.Store

	palette []color.NRGBA

	fontFace font.Face
}

// NewPreviewService builds the renderer. PREVIEW_PALETTE_JSON_PATH can
// point at a JSON array of "#RRGGBB" strings to replace the built-in
// class palette. PREVIEW_FONT can point at a TTF to label previews with
// the sample id; without it previews render unlabeled.
func NewPreviewService(log *logger.Logger, resultRepo runs.ResultRepo, store artifacts.Store) (PreviewService, error) {
	serviceLog := log.With("service", "PreviewService")

	palette := defaultPalette()
	if p := strings.TrimSpace(os.Getenv("PREVIEW_PALETTE_JSON_PATH")); p != "" {
		serviceLog.Info("Loading preview palette...", "path", p)
		loaded, err := loadPaletteFromFile(p)
		if err != nil {
			return nil, fmt.Errorf("could not load preview palette: %w", err)
		}
		if len(loaded) == 0 {
			return nil, fmt.Errorf("preview palette is empty")
		}
		palette = loaded
	}

	var face font.Face
	if fontPath := strings.TrimSpace(os.Getenv("PREVIEW_FONT")); fontPath != "" {
		serviceLog.Info("Loading preview font", "font", fontPath)
		f, err := loadPreviewFontFace(fontPath, 18)
		if err != nil {
			return nil, fmt.Errorf("could not load preview font: %w", err)
		}
		face = f
	}

	return &previewService{
		log:        serviceLog,
		resultRepo: resultRepo,
		store:      store,
		palette:    palette,
		fontFace:   face,
	}, nil
}

// Render draws the middle slice of pred. Shape must be [B, C, spatial...]
// with at least a 2D spatial plane; one-hot inputs (C > 1) are collapsed
// to class indices first.
func (ps *previewService) Render(pred *tensor.Tensor, label string) (bytes.Buffer, error) {
	var buf bytes.Buffer

	classes, err := toClassIndex(pred)
	if err != nil {
		return buf, err
	}

	shape := classes.Shape()
	spatial := shape[2:]
	if len(spatial) < 2 {
		return buf, fmt.Errorf("preview needs a 2D plane, got spatial dims %v", spatial)
	}

	h := spatial[len(spatial)-2]
	w := spatial[len(spatial)-1]
	planeLen := h * w

	// Leading spatial dims collapse to one slice index; the middle slice
	// of the first batch item is the one rendered.
	depth := 1
	for _, d := range spatial[:len(spatial)-2] {
		depth *= d
	}
	sliceBase := (depth / 2) * planeLen

	data := classes.Data()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cls := int(data[sliceBase+y*w+x])
			if cls < 0 {
				cls = 0
			}
			img.SetNRGBA(x, y, ps.palette[cls%len(ps.palette)])
		}
	}

	// Upscale small volumes so previews are inspectable as-is.
	const minSide = 256
	scale := 1
	for smaller(w, h)*scale < minSide && scale < 16 {
		scale++
	}
	outW, outH := w*scale, h*scale
	dst := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	dc := gg.NewContext(outW, outH)
	dc.DrawImage(dst, 0, 0)

	if ps.fontFace != nil && strings.TrimSpace(label) != "" {
		dc.SetFontFace(ps.fontFace)
		tw, th := dc.MeasureString(label)
		pad := 6.0
		dc.SetRGBA(0, 0, 0, 0.6)
		dc.DrawRectangle(0, float64(outH)-th-2*pad, tw+2*pad, th+2*pad)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawString(label, pad, float64(outH)-pad)
	}

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf, nil
}

func (ps *previewService) CreateAndUploadPreview(ctx context.Context, tx *gorm.DB, result *types.SampleResult, pred *tensor.Tensor) error {
	if result == nil {
		return fmt.Errorf("sample result required")
	}

	label := result.SampleID
	if result.MeanDice != nil {
		label = fmt.Sprintf("%s  dice %.3f", result.SampleID, *result.MeanDice)
	}

	buf, err := ps.Render(pred, label)
	if err != nil {
		return err
	}

	// Versioned key so re-renders never serve a stale cached object.
	key := fmt.Sprintf("runs/%s/previews/%s_%d.png", result.RunID.String(), result.SampleID, time.Now().UnixNano())

	if err := ps.store.Put(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("failed to upload preview: %w", err)
	}

	if err := ps.resultRepo.UpdatePreviewKey(ctx, tx, result.ID, key); err != nil {
		return err
	}
	result.PreviewKey = key
	return nil
}

// -------------------- Slice helpers --------------------

// toClassIndex returns pred as a [B, 1, spatial...] class-index tensor,
// collapsing one-hot channels through argmax when needed.
func toClassIndex(pred *tensor.Tensor) (*tensor.Tensor, error) {
	if pred == nil {
		return nil, fmt.Errorf("prediction required")
	}
	if pred.Rank() < 2 {
		return nil, fmt.Errorf("preview needs shape [B, C, ...], got %v", pred.Shape())
	}
	if pred.Dim(1) == 1 {
		return pred, nil
	}
	return postprocess.ArgMax(pred)
}

func smaller(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// -------------------- Palette helpers --------------------

func defaultPalette() []color.NRGBA {
	hexes := []string{
		"#000000", // background
		"#E6194B",
		"#3CB44B",
		"#4363D8",
		"#FFE119",
		"#F032E6",
		"#42D4F4",
		"#F58231",
		"#911EB4",
		"#469990",
		"#9A6324",
	}
	out := make([]color.NRGBA, 0, len(hexes))
	for _, h := range hexes {
		r, g, b, err := parsePaletteHex(h)
		if err != nil {
			continue
		}
		out = append(out, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return out
}

func loadPaletteFromFile(jsonPath string) ([]color.NRGBA, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read file error: %w", err)
	}
	var hexes []string
	if err := json.Unmarshal(data, &hexes); err != nil {
		return nil, fmt.Errorf("json unmarshal error: %w", err)
	}
	out := make([]color.NRGBA, 0, len(hexes))
	for _, h := range hexes {
		r, g, b, err := parsePaletteHex(h)
		if err != nil {
			return nil, fmt.Errorf("bad palette entry %q: %w", h, err)
		}
		out = append(out, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return out, nil
}

func parsePaletteHex(s string) (r, g, b uint8, err error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("expected 6 hex chars")
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid hex")
	}
	return raw[0], raw[1], raw[2], nil
}

// -------------------- Font helpers --------------------

func loadPreviewFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return face, nil
}
