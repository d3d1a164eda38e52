package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/makeworld-the-better-one/dither/v2"
)

// DitherMethod selects how gray values are reduced to black and white.
type DitherMethod string

const (
	DitherThreshold DitherMethod = "threshold"
	DitherSteinberg DitherMethod = "steinberg"
	DitherBayer     DitherMethod = "bayer"
	DitherAtkinson  DitherMethod = "atkinson"
	DitherPattern   DitherMethod = "pattern"
	DitherStucki    DitherMethod = "stucki"
	DitherBurkes    DitherMethod = "burkes"
)

// DitherMethods lists every supported method.
var DitherMethods = []DitherMethod{
	DitherThreshold, DitherSteinberg, DitherBayer, DitherAtkinson, DitherPattern,
	DitherStucki, DitherBurkes,
}

// ParseDitherMethod validates a method name.
func ParseDitherMethod(s string) (DitherMethod, error) {
	for _, m := range DitherMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("imaging: unknown dither method %q", s)
}

const (
	black     = 0
	white     = 255
	threshold = 128
)

// Dither reduces a w×h gray buffer to values of exactly 0 (black) or 255
// (white). The hand-written error diffusion methods modify gray in place.
func Dither(method DitherMethod, gray []float64, w, h int) ([]uint8, error) {
	switch method {
	case DitherThreshold:
		return thresholdDither(gray), nil
	case DitherSteinberg:
		return floydSteinberg(gray, w, h), nil
	case DitherBayer:
		return bayer(gray, w, h), nil
	case DitherAtkinson:
		return atkinson(gray, w, h), nil
	case DitherPattern:
		return halftone(gray, w, h), nil
	case DitherStucki:
		return diffuse(dither.Stucki, gray, w, h), nil
	case DitherBurkes:
		return diffuse(dither.Burkes, gray, w, h), nil
	default:
		return nil, fmt.Errorf("imaging: unknown dither method %q", method)
	}
}

func quantize(v float64) uint8 {
	if v < threshold {
		return black
	}
	return white
}

func thresholdDither(gray []float64) []uint8 {
	out := make([]uint8, len(gray))
	for i, v := range gray {
		out[i] = quantize(v)
	}
	return out
}

// floydSteinberg diffuses 7/16 right, 3/16 below-left, 5/16 below and
// 1/16 below-right, writing ahead into pixels not yet visited.
func floydSteinberg(gray []float64, w, h int) []uint8 {
	out := make([]uint8, len(gray))
	for y := range h {
		for x := range w {
			i := y*w + x
			q := quantize(gray[i])
			out[i] = q
			e := gray[i] - float64(q)
			if x+1 < w {
				gray[i+1] += e * 7 / 16
			}
			if y+1 < h {
				if x > 0 {
					gray[i+w-1] += e * 3 / 16
				}
				gray[i+w] += e * 5 / 16
				if x+1 < w {
					gray[i+w+1] += e * 1 / 16
				}
			}
		}
	}
	return out
}

var bayerMatrix = [8][8]float64{
	{0, 32, 8, 40, 2, 34, 10, 42},
	{48, 16, 56, 24, 50, 18, 58, 26},
	{12, 44, 4, 36, 14, 46, 6, 38},
	{60, 28, 52, 20, 62, 30, 54, 22},
	{3, 35, 11, 43, 1, 33, 9, 41},
	{51, 19, 59, 27, 49, 17, 57, 25},
	{15, 47, 7, 39, 13, 45, 5, 37},
	{63, 31, 55, 23, 61, 29, 53, 21},
}

const bayerStrength = 0.6

func bayer(gray []float64, w, h int) []uint8 {
	out := make([]uint8, len(gray))
	for y := range h {
		row := bayerMatrix[y%8]
		for x := range w {
			i := y*w + x
			out[i] = quantize(gray[i] + (row[x%8]-32)*bayerStrength)
		}
	}
	return out
}

// atkinson spreads error/8 (floored) to six neighbours, so only 6/8 of
// the quantization error survives.
func atkinson(gray []float64, w, h int) []uint8 {
	out := make([]uint8, len(gray))
	add := func(x, y int, v float64) {
		if x >= 0 && x < w && y < h {
			gray[y*w+x] += v
		}
	}
	for y := range h {
		for x := range w {
			i := y*w + x
			q := quantize(gray[i])
			out[i] = q
			e := float64(int(gray[i]-float64(q)) >> 3)
			add(x+1, y, e)
			add(x+2, y, e)
			add(x-1, y+1, e)
			add(x, y+1, e)
			add(x+1, y+1, e)
			add(x, y+2, e)
		}
	}
	return out
}

const tileSize = 4

// halftone renders each full 4×4 tile as a dot centred in the tile whose
// radius grows with the tile's average darkness. Pixels outside full
// tiles are left white.
func halftone(gray []float64, w, h int) []uint8 {
	out := make([]uint8, len(gray))
	for i := range out {
		out[i] = white
	}

	const c = (tileSize - 1) / 2.0
	maxDist := math.Hypot(c, c)

	for ty := 0; ty+tileSize <= h; ty += tileSize {
		for tx := 0; tx+tileSize <= w; tx += tileSize {
			var sum float64
			for dy := range tileSize {
				for dx := range tileSize {
					sum += gray[(ty+dy)*w+tx+dx]
				}
			}
			darkness := 1 - sum/(tileSize*tileSize)/255
			radius := darkness * maxDist
			for dy := range tileSize {
				for dx := range tileSize {
					if math.Hypot(float64(dx)-c, float64(dy)-c) <= radius {
						out[(ty+dy)*w+tx+dx] = black
					}
				}
			}
		}
	}
	return out
}

var blackWhite = []color.Color{color.Black, color.White}

// diffuse runs a wide-kernel error diffusion matrix through the dither
// library with serpentine scanning. gray is left untouched.
func diffuse(m dither.ErrorDiffusionMatrix, gray []float64, w, h int) []uint8 {
	src := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range gray {
		src.Pix[i] = uint8(math.Round(clamp(v)))
	}

	d := dither.NewDitherer(blackWhite)
	d.Matrix = m
	d.Serpentine = true
	p := d.DitherPaletted(src)

	out := make([]uint8, len(gray))
	for y := range h {
		for x := range w {
			if p.ColorIndexAt(x, y) == 1 {
				out[y*w+x] = white
			}
		}
	}
	return out
}
