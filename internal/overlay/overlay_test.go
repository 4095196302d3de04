package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceJPEG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestRenderProducesCanvasSizedJPEG(t *testing.T) {
	out, err := Render(sourceJPEG(t, 640, 480), Options{
		Width:    1080,
		Height:   1350,
		Title:    "Kitchen Remodel Tips",
		Subtitle: "renomedia.example",
	})
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1080, img.Bounds().Dx())
	assert.Equal(t, 1350, img.Bounds().Dy())
}

func TestRenderSquareCanvas(t *testing.T) {
	out, err := Render(sourceJPEG(t, 1920, 1080), Options{
		Width:  1080,
		Height: 1080,
		Title:  "Before And After",
	})
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1080, img.Bounds().Dx())
	assert.Equal(t, 1080, img.Bounds().Dy())
}

func TestRenderRejectsGarbage(t *testing.T) {
	_, err := Render([]byte("not an image"), Options{Width: 1080, Height: 1080})
	assert.Error(t, err)
}

func TestRenderRejectsInvalidCanvas(t *testing.T) {
	_, err := Render(sourceJPEG(t, 10, 10), Options{Width: 0, Height: 1080})
	assert.Error(t, err)
}

func TestCoverCropMatchesTargetAspect(t *testing.T) {
	// wide source, square target: sides trimmed
	crop := coverCrop(image.Rect(0, 0, 2000, 1000), 1080, 1080)
	assert.Equal(t, 1000, crop.Dx())
	assert.Equal(t, 1000, crop.Dy())
	assert.Equal(t, 500, crop.Min.X)

	// tall source, square target: top and bottom trimmed
	crop = coverCrop(image.Rect(0, 0, 1000, 2000), 1080, 1080)
	assert.Equal(t, 1000, crop.Dx())
	assert.Equal(t, 1000, crop.Dy())
	assert.Equal(t, 500, crop.Min.Y)
}

func TestWrapBreaksOnWordBoundaries(t *testing.T) {
	lines := wrap("SEVEN KITCHEN UPGRADES THAT PAY FOR THEMSELVES", 20, 3)
	require.NotEmpty(t, lines)
	assert.LessOrEqual(t, len(lines), 3)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 20, "line %q", line)
	}
}

func TestWrapDropsOverflowPastLastLine(t *testing.T) {
	lines := wrap("one two three four five six seven eight nine ten", 9, 2)
	assert.Len(t, lines, 2)
}

func TestWrapEmpty(t *testing.T) {
	assert.Empty(t, wrap("   ", 20, 3))
}
