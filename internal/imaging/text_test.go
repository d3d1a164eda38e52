package imaging

import (
	"image"
	"strings"
	"testing"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

func testFace(t *testing.T) font.Face {
	t.Helper()
	face := truetype.NewFace(goRegular, &truetype.Options{Size: DefaultFontSize, DPI: PrinterDPI})
	t.Cleanup(func() { face.Close() })
	return face
}

func darkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r < 0x8000 {
				n++
			}
		}
	}
	return n
}

func TestRenderTextGeometry(t *testing.T) {
	face := testFace(t)
	lineH := face.Metrics().Height.Ceil()

	tests := []struct {
		name   string
		text   string
		margin int
		lines  int
	}{
		{"single line", "hello", 0, 1},
		{"explicit newline", "hello\nworld", 0, 2},
		{"blank line kept", "hello\n\nworld", 0, 3},
		{"trailing newline ignored", "hello\n", 0, 1},
		{"margin", "hello", 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := RenderText(tt.text, TextOptions{Margin: tt.margin})
			if err != nil {
				t.Fatalf("RenderText() error = %v", err)
			}
			b := img.Bounds()
			if b.Dx() != PrintWidth {
				t.Errorf("width = %d, want %d", b.Dx(), PrintWidth)
			}
			if want := tt.lines*lineH + 2*tt.margin; b.Dy() != want {
				t.Errorf("height = %d, want %d", b.Dy(), want)
			}
			if darkPixels(img) == 0 {
				t.Error("no ink rendered")
			}
		})
	}
}

func TestRenderTextInvert(t *testing.T) {
	plain, err := RenderText("ink", TextOptions{})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := RenderText("ink", TextOptions{Invert: true})
	if err != nil {
		t.Fatal(err)
	}
	total := PrintWidth * plain.Bounds().Dy()
	if darkPixels(plain) >= total/2 {
		t.Error("plain render is mostly dark")
	}
	if darkPixels(inv) <= total/2 {
		t.Error("inverted render is mostly light")
	}
}

func TestRenderTextErrors(t *testing.T) {
	if _, err := RenderText("  \n ", TextOptions{}); err == nil {
		t.Error("blank text: expected error")
	}
	if _, err := RenderText("x", TextOptions{Margin: PrintWidth / 2}); err == nil {
		t.Error("oversized margin: expected error")
	}
}

func TestWrapWordsFitsWidth(t *testing.T) {
	face := testFace(t)
	text := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	lines := wrapWords(text, face, 200)
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want wrapping", len(lines))
	}
	for i, l := range lines {
		if w := measureString(face, l); w > 200 {
			t.Errorf("line %d %q is %dpx wide", i, l, w)
		}
		if strings.HasPrefix(l, " ") || strings.HasSuffix(l, " ") {
			t.Errorf("line %d %q has edge spaces", i, l)
		}
	}
	if got := strings.Join(lines, " "); got != strings.TrimSpace(text) {
		t.Errorf("words lost in wrapping")
	}
}

func TestWrapWordsBreaksLongWord(t *testing.T) {
	face := testFace(t)
	word := strings.Repeat("W", 60)
	lines := wrapWords(word, face, 100)
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want the word split", len(lines))
	}
	if got := strings.Join(lines, ""); got != word {
		t.Errorf("joined = %q, want %q", got, word)
	}
	for i, l := range lines {
		if w := measureString(face, l); w > 100 {
			t.Errorf("line %d is %dpx wide", i, w)
		}
	}
}
