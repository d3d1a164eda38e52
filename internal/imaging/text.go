package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// PrinterDPI is the print head resolution.
const PrinterDPI = 203

// DefaultFontSize is the text size in points used when none is set.
const DefaultFontSize = 12

// TextOptions configures RenderText.
type TextOptions struct {
	FontSize float64 // points; <= 0 selects DefaultFontSize
	Margin   int     // blank pixels around the text block
	Center   bool    // center each line instead of left-aligning
	Invert   bool    // white text on black
}

var goRegular *truetype.Font

func init() {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
	goRegular = f
}

// RenderText lays text out for the print head: PrintWidth pixels wide and
// as tall as the wrapped lines need. Lines break at spaces; words wider than
// a line are split. Explicit newlines are kept, blank lines included.
func RenderText(text string, opts TextOptions) (image.Image, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("imaging: no text to render")
	}
	size := opts.FontSize
	if size <= 0 {
		size = DefaultFontSize
	}
	margin := max(opts.Margin, 0)
	maxW := PrintWidth - 2*margin
	if maxW <= 0 {
		return nil, errors.New("imaging: margin leaves no room for text")
	}

	face := truetype.NewFace(goRegular, &truetype.Options{Size: size, DPI: PrinterDPI, Hinting: font.HintingFull})
	defer face.Close()
	metrics := face.Metrics()
	lineH := metrics.Height.Ceil()

	lines := wrapWords(text, face, maxW)
	h := len(lines)*lineH + 2*margin

	bg, fg := color.Gray{Y: 0xFF}, color.Gray{Y: 0x00}
	if opts.Invert {
		bg, fg = fg, bg
	}
	img := image.NewRGBA(image.Rect(0, 0, PrintWidth, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(PrinterDPI)
	c.SetFont(goRegular)
	c.SetFontSize(size)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(&image.Uniform{fg})
	c.SetHinting(font.HintingFull)

	y := margin + metrics.Ascent.Ceil()
	for _, line := range lines {
		x := margin
		if opts.Center {
			x += (maxW - measureString(face, line)) / 2
		}
		if _, err := c.DrawString(line, freetype.Pt(x, y)); err != nil {
			return nil, err
		}
		y += lineH
	}
	return img, nil
}

// wrapWords splits text into lines no wider than maxW.
func wrapWords(text string, face font.Face, maxW int) []string {
	var lines []string
	for _, para := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := ""
		for _, word := range words {
			next := word
			if cur != "" {
				next = cur + " " + word
			}
			if measureString(face, next) <= maxW {
				cur = next
				continue
			}
			if cur != "" {
				lines = append(lines, cur)
			}
			cur = breakWord(word, face, maxW, &lines)
		}
		lines = append(lines, cur)
	}
	return lines
}

// breakWord appends full-width pieces of word to lines and returns the rest.
func breakWord(word string, face font.Face, maxW int, lines *[]string) string {
	var part string
	for _, r := range word {
		next := part + string(r)
		if measureString(face, next) > maxW && part != "" {
			*lines = append(*lines, part)
			next = string(r)
		}
		part = next
	}
	return part
}

func measureString(face font.Face, s string) int {
	var w fixed.Int26_6
	for _, r := range s {
		if adv, ok := face.GlyphAdvance(r); ok {
			w += adv
		}
	}
	return w.Ceil()
}
