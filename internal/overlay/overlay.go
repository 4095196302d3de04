// Package overlay renders social-ready promo images: the source photo
// cover-scaled onto a fixed canvas, a dark scrim, and centered title and
// subtitle text. Compositing locally produces one deterministic static asset
// instead of a derived-on-read one whose first access can race the
// publishing platform's own fetch.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	jpegQuality = 85

	scrimAlpha = 115

	titleMaxLines     = 3
	titleMaxLineChars = 20
	subtitleMaxChars  = 48

	// Font sizes in pixels at a 1080px-wide canvas; scaled proportionally.
	titleSizeBase    = 72.0
	subtitleSizeBase = 40.0
	lineSpacing      = 1.25
)

// Options describes the canvas and the text composited onto it.
type Options struct {
	Width    int
	Height   int
	Title    string
	Subtitle string
}

// Render decodes the source photo and produces JPEG bytes of the composited
// canvas.
func Render(source []byte, opts Options) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", opts.Width, opts.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), src, coverCrop(src.Bounds(), opts.Width, opts.Height), xdraw.Over, nil)

	scrim := image.NewUniform(color.NRGBA{A: scrimAlpha})
	draw.Draw(canvas, canvas.Bounds(), scrim, image.Point{}, draw.Over)

	if err := drawText(canvas, opts); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// coverCrop returns the largest centered sub-rectangle of bounds matching the
// target aspect ratio, so scaling fills the canvas without distortion.
func coverCrop(bounds image.Rectangle, width, height int) image.Rectangle {
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return bounds
	}

	if srcW*height > width*srcH {
		// source is wider than target: trim the sides
		cropW := srcH * width / height
		x0 := bounds.Min.X + (srcW-cropW)/2
		return image.Rect(x0, bounds.Min.Y, x0+cropW, bounds.Max.Y)
	}
	cropH := srcW * height / width
	y0 := bounds.Min.Y + (srcH-cropH)/2
	return image.Rect(bounds.Min.X, y0, bounds.Max.X, y0+cropH)
}

func drawText(canvas *image.RGBA, opts Options) error {
	scale := float64(opts.Width) / 1080.0

	titleFace, err := newFace(gobold.TTF, titleSizeBase*scale)
	if err != nil {
		return fmt.Errorf("load title font: %w", err)
	}
	defer titleFace.Close()

	subtitleFace, err := newFace(goregular.TTF, subtitleSizeBase*scale)
	if err != nil {
		return fmt.Errorf("load subtitle font: %w", err)
	}
	defer subtitleFace.Close()

	titleLines := wrap(strings.ToUpper(strings.TrimSpace(opts.Title)), titleMaxLineChars, titleMaxLines)
	subtitle := strings.ToUpper(strings.TrimSpace(opts.Subtitle))
	if runes := []rune(subtitle); len(runes) > subtitleMaxChars {
		subtitle = string(runes[:subtitleMaxChars])
	}

	titleLineH := int(titleSizeBase * scale * lineSpacing)
	subtitleLineH := int(subtitleSizeBase * scale * lineSpacing)

	blockH := len(titleLines) * titleLineH
	if subtitle != "" {
		blockH += subtitleLineH + titleLineH/2
	}

	baseline := (opts.Height-blockH)/2 + titleLineH
	for _, line := range titleLines {
		drawCenteredLine(canvas, titleFace, line, baseline)
		baseline += titleLineH
	}
	if subtitle != "" {
		baseline += titleLineH/2 + subtitleLineH - titleLineH
		drawCenteredLine(canvas, subtitleFace, subtitle, baseline)
	}

	return nil
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func drawCenteredLine(canvas *image.RGBA, face font.Face, line string, baselineY int) {
	if line == "" {
		return
	}
	width := font.MeasureString(face, line).Ceil()
	x := (canvas.Bounds().Dx() - width) / 2
	if x < 0 {
		x = 0
	}
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, baselineY),
	}
	drawer.DrawString(line)
}

// wrap splits text into at most maxLines lines of at most maxChars characters
// each, breaking on word boundaries. Overflow past the last line is dropped.
func wrap(text string, maxChars, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := make([]string, 0, maxLines)
	current := ""
	for _, word := range words {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxChars:
			current += " " + word
		default:
			lines = append(lines, current)
			if len(lines) == maxLines {
				return lines
			}
			current = word
		}
	}
	if current != "" && len(lines) < maxLines {
		lines = append(lines, current)
	}
	return lines
}
