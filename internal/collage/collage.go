// Package collage combines multiple scanned pages into one composite image
// sized for the extraction service, so a multi-page document costs a single
// OCR call.
package collage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// Layout is a grid arrangement of pages.
type Layout struct {
	Rows int
	Cols int
}

// Cells returns the number of slots in the grid.
func (l Layout) Cells() int { return l.Rows * l.Cols }

func (l Layout) String() string { return fmt.Sprintf("%dx%d", l.Rows, l.Cols) }

// Result describes a built composite.
type Result struct {
	Path      string
	Layout    Layout
	PageWidth int
	Bytes     int64
}

// Builder assembles page images into a single legible composite.
type Builder struct {
	minPageWidth int
	maxBytes     int64
	canvasWidth  int
	canvasHeight int
	logger       *zap.Logger
}

// NewBuilder constructs a Builder with the given thresholds.
func NewBuilder(minPageWidth int, maxBytes int64, canvasWidth, canvasHeight int, logger *zap.Logger) *Builder {
	if minPageWidth <= 0 {
		minPageWidth = 300
	}
	if maxBytes <= 0 {
		maxBytes = 1_500_000
	}
	if canvasWidth <= 0 {
		canvasWidth = 3072
	}
	if canvasHeight <= 0 {
		canvasHeight = 3072
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		minPageWidth: minPageWidth,
		maxBytes:     maxBytes,
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
		logger:       logger,
	}
}

// ChooseLayout picks the grid for n pages of the given (uniform) dimensions.
// Candidates grow in cell count from a single row upward; any candidate whose
// packed per-page width falls below minWidth is rejected. Among survivors the
// one with the highest per-page resolution wins, ties broken by fewer rows
// then fewer columns, so the choice is deterministic for a fixed input.
func ChooseLayout(n, pageW, pageH, canvasW, canvasH, minWidth int) (Layout, int, error) {
	if n < 1 || pageW <= 0 || pageH <= 0 {
		return Layout{}, 0, appErrors.Clone(appErrors.ErrInvalidInput, "collage needs at least one page with known dimensions")
	}

	best := Layout{}
	bestWidth := 0
	for rows := 1; rows <= n; rows++ {
		cols := (n + rows - 1) / rows
		width := packedWidth(pageW, pageH, canvasW/cols, canvasH/rows)
		if width < minWidth {
			continue
		}
		if width > bestWidth || (width == bestWidth && better(Layout{rows, cols}, best)) {
			best = Layout{Rows: rows, Cols: cols}
			bestWidth = width
		}
	}
	if bestWidth == 0 {
		return Layout{}, 0, appErrors.Clone(appErrors.ErrCollageTooSmall,
			fmt.Sprintf("no grid keeps %d pages at or above %dpx wide", n, minWidth))
	}
	return best, bestWidth, nil
}

// packedWidth is the page width after fitting one page into a cell without
// upscaling or distorting its aspect ratio.
func packedWidth(pageW, pageH, cellW, cellH int) int {
	scale := float64(cellW) / float64(pageW)
	if s := float64(cellH) / float64(pageH); s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	return int(float64(pageW) * scale)
}

func better(a, b Layout) bool {
	if b.Rows == 0 {
		return true
	}
	if a.Rows != b.Rows {
		return a.Rows < b.Rows
	}
	return a.Cols < b.Cols
}

// Build assembles the ordered pages into outPath. Only called for more than
// one page; single-page documents go to the extraction service directly.
func (b *Builder) Build(paths []string, outPath string) (*Result, error) {
	if len(paths) < 2 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "collage requires at least two pages")
	}

	pages := make([]image.Image, 0, len(paths))
	maxW, maxH := 0, 0
	for _, path := range paths {
		img, err := decode(path)
		if err != nil {
			return nil, err
		}
		bounds := img.Bounds()
		if bounds.Dx() > maxW {
			maxW = bounds.Dx()
		}
		if bounds.Dy() > maxH {
			maxH = bounds.Dy()
		}
		pages = append(pages, img)
	}

	layout, pageWidth, err := ChooseLayout(len(pages), maxW, maxH, b.canvasWidth, b.canvasHeight, b.minPageWidth)
	if err != nil {
		return nil, err
	}

	cellW := pageWidth
	cellH := packedHeight(maxW, maxH, cellW)
	canvas := image.NewRGBA(image.Rect(0, 0, cellW*layout.Cols, cellH*layout.Rows))
	for i, page := range pages {
		row, col := i/layout.Cols, i%layout.Cols
		cell := image.Rect(col*cellW, row*cellH, (col+1)*cellW, (row+1)*cellH)
		xdraw.ApproxBiLinear.Scale(canvas, cell, page, page.Bounds(), xdraw.Over, nil)
	}

	encoded, err := b.encodeUnderLimit(canvas)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "write collage")
	}

	b.logger.Info("collage built",
		zap.String("layout", layout.String()),
		zap.Int("pages", len(pages)),
		zap.Int("page_width", pageWidth),
		zap.Int("bytes", len(encoded)),
	)
	return &Result{Path: outPath, Layout: layout, PageWidth: pageWidth, Bytes: int64(len(encoded))}, nil
}

func packedHeight(pageW, pageH, targetW int) int {
	return int(float64(pageH) * float64(targetW) / float64(pageW))
}

// encodeUnderLimit re-encodes the canvas as JPEG, stepping quality down until
// the result fits under the configured size ceiling.
func (b *Builder) encodeUnderLimit(canvas image.Image) ([]byte, error) {
	for quality := 85; quality >= 30; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "encode collage")
		}
		if int64(buf.Len()) <= b.maxBytes {
			if quality < 85 {
				b.logger.Warn("collage compressed below default quality", zap.Int("quality", quality))
			}
			return buf.Bytes(), nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrCollageTooSmall, "collage exceeds size ceiling at minimum quality")
}

func decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.KindInternal, "open page image")
	}
	defer file.Close() //nolint:errcheck
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedPayload.Code, appErrors.KindData, "decode page image")
	}
	return img, nil
}
