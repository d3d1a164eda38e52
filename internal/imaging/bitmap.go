package imaging

import "fmt"

// Bitmap is a row-major black and white image; true marks a black pixel.
type Bitmap struct {
	Width, Height int
	Pix           []bool
}

// NewBitmap returns an all-white bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// FromBinary converts a dithered 0/255 buffer into a bitmap.
func FromBinary(bin []uint8, w, h int) *Bitmap {
	b := NewBitmap(w, h)
	for i, v := range bin {
		b.Pix[i] = v == black
	}
	return b
}

// At reports whether the pixel at (x, y) is black.
func (b *Bitmap) At(x, y int) bool {
	return b.Pix[y*b.Width+x]
}

func (b *Bitmap) set(x, y int, v bool) {
	b.Pix[y*b.Width+x] = v
}

// Equal reports whether two bitmaps have the same size and pixels.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b.Width != o.Width || b.Height != o.Height {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

func (b *Bitmap) String() string {
	return fmt.Sprintf("Bitmap(%d,%d)", b.Width, b.Height)
}

// FlipMode mirrors a bitmap.
type FlipMode string

const (
	FlipNone FlipMode = "none"
	FlipH    FlipMode = "h"
	FlipV    FlipMode = "v"
	FlipBoth FlipMode = "both"
)

// ParseFlip validates a flip mode name. The empty string means FlipNone.
func ParseFlip(s string) (FlipMode, error) {
	switch FlipMode(s) {
	case "", FlipNone:
		return FlipNone, nil
	case FlipH, FlipV, FlipBoth:
		return FlipMode(s), nil
	default:
		return "", fmt.Errorf("imaging: unknown flip mode %q", s)
	}
}

// Flip returns a mirrored copy of b: FlipH mirrors left-right, FlipV
// top-bottom.
func Flip(b *Bitmap, mode FlipMode) *Bitmap {
	fh := mode == FlipH || mode == FlipBoth
	fv := mode == FlipV || mode == FlipBoth
	out := NewBitmap(b.Width, b.Height)
	for y := range b.Height {
		sy := y
		if fv {
			sy = b.Height - 1 - y
		}
		for x := range b.Width {
			sx := x
			if fh {
				sx = b.Width - 1 - x
			}
			out.set(x, y, b.At(sx, sy))
		}
	}
	return out
}

// Rotation is a clockwise rotation in degrees.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation validates a rotation angle.
func ParseRotation(deg int) (Rotation, error) {
	switch r := Rotation(deg); r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return r, nil
	default:
		return 0, fmt.Errorf("imaging: rotation must be 0, 90, 180 or 270, got %d", deg)
	}
}

// Rotate returns b rotated clockwise. 90 and 270 swap width and height.
func Rotate(b *Bitmap, r Rotation) *Bitmap {
	w, h := b.Width, b.Height
	switch r {
	case Rotate90:
		out := NewBitmap(h, w)
		for y := range h {
			for x := range w {
				out.set(h-1-y, x, b.At(x, y))
			}
		}
		return out
	case Rotate180:
		out := NewBitmap(w, h)
		for y := range h {
			for x := range w {
				out.set(w-1-x, h-1-y, b.At(x, y))
			}
		}
		return out
	case Rotate270:
		out := NewBitmap(h, w)
		for y := range h {
			for x := range w {
				out.set(y, w-1-x, b.At(x, y))
			}
		}
		return out
	default:
		out := NewBitmap(w, h)
		copy(out.Pix, b.Pix)
		return out
	}
}
