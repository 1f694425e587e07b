package collage

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

func TestChooseLayoutPrefersFewestCellsThatFit(t *testing.T) {
	// A4-ish pages on a square canvas with a 600px floor: 2x3 packs the
	// five pages largest among the surviving grids.
	layout, width, err := ChooseLayout(5, 2480, 3508, 3000, 3000, 600)
	require.NoError(t, err)
	assert.Equal(t, Layout{Rows: 2, Cols: 3}, layout)
	assert.GreaterOrEqual(t, width, 600)
}

func TestChooseLayoutTieBreaksByFewerRows(t *testing.T) {
	// Square pages make 2x3 and 3x2 pack identically; fewer rows wins.
	layout, width, err := ChooseLayout(5, 1000, 1000, 3000, 3000, 600)
	require.NoError(t, err)
	assert.Equal(t, Layout{Rows: 2, Cols: 3}, layout)
	assert.Equal(t, 1000, width)
}

func TestChooseLayoutDeterministic(t *testing.T) {
	first, firstWidth, err := ChooseLayout(5, 2480, 3508, 3000, 3000, 300)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		layout, width, err := ChooseLayout(5, 2480, 3508, 3000, 3000, 300)
		require.NoError(t, err)
		assert.Equal(t, first, layout)
		assert.Equal(t, firstWidth, width)
	}
}

func TestChooseLayoutLegibilityInvariant(t *testing.T) {
	for n := 2; n <= 9; n++ {
		layout, width, err := ChooseLayout(n, 2480, 3508, 3072, 3072, 300)
		if err != nil {
			assert.Equal(t, appErrors.ErrCollageTooSmall.Code, appErrors.FromError(err).Code)
			continue
		}
		assert.GreaterOrEqual(t, width, 300, "n=%d layout=%s", n, layout)
		assert.GreaterOrEqual(t, layout.Cells(), n, "layout must hold every page")
	}
}

func TestChooseLayoutFailsWhenNothingIsLegible(t *testing.T) {
	// Tiny canvas: even a single row cannot keep pages at 300px.
	_, _, err := ChooseLayout(16, 2480, 3508, 1000, 1000, 300)
	require.Error(t, err)
	assert.Equal(t, appErrors.KindData, appErrors.KindOf(err))
}

func TestChooseLayoutSinglePage(t *testing.T) {
	layout, width, err := ChooseLayout(1, 2480, 3508, 3072, 3072, 300)
	require.NoError(t, err)
	assert.Equal(t, Layout{Rows: 1, Cols: 1}, layout)
	assert.Greater(t, width, 300)
}

func writePage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 2 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.Black)
		}
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, png.Encode(file, img))
	return path
}

func TestBuildAssemblesComposite(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePage(t, dir, "p1.png", 620, 877),
		writePage(t, dir, "p2.png", 620, 877),
		writePage(t, dir, "p3.png", 600, 850),
	}
	out := filepath.Join(dir, "collage.jpg")

	builder := NewBuilder(300, 1_500_000, 3072, 3072, nil)
	result, err := builder.Build(paths, out)
	require.NoError(t, err)
	assert.Equal(t, out, result.Path)
	assert.GreaterOrEqual(t, result.PageWidth, 300)
	assert.GreaterOrEqual(t, result.Layout.Cells(), 3)
	assert.LessOrEqual(t, result.Bytes, int64(1_500_000))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, result.Bytes, info.Size())
}

func TestBuildRejectsSinglePage(t *testing.T) {
	builder := NewBuilder(300, 1_500_000, 3072, 3072, nil)
	_, err := builder.Build([]string{"only.png"}, "out.jpg")
	require.Error(t, err)
	assert.Equal(t, appErrors.KindUser, appErrors.KindOf(err))
}

func TestBuildFailsWhenPagesIllegible(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePage(t, dir, "p1.png", 640, 900),
		writePage(t, dir, "p2.png", 640, 900),
	}
	// Canvas too small for two 640px pages to stay above the floor.
	builder := NewBuilder(600, 1_500_000, 700, 700, nil)
	_, err := builder.Build(paths, filepath.Join(dir, "collage.jpg"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCollageTooSmall.Code, appErrors.FromError(err).Code)
}
