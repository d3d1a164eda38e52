// Package imaging turns RGBA pixel buffers into the 1-bit rows an MXW01
// printer accepts: grayscale conversion, dithering, flips, rotations and
// packing.
package imaging

// Luma weights applied to the red, green and blue channels.
const (
	lumaR = 0.2125
	lumaG = 0.7154
	lumaB = 0.0721
)

// NeutralBrightness leaves gray values unchanged.
const NeutralBrightness = 128

// Grayscale converts a w×h RGBA buffer (4 bytes per pixel, straight
// alpha) to gray values in [0, 255]. Transparent pixels are composited
// over white. brightness shifts midtones up or down, with the effect
// fading out towards pure black and pure white; NeutralBrightness is a
// no-op.
func Grayscale(pix []byte, w, h int, brightness int) []float64 {
	gray := make([]float64, w*h)
	shift := float64(brightness - NeutralBrightness)
	for i := range gray {
		p := pix[i*4 : i*4+4 : i*4+4]
		v := lumaR*float64(p[0]) + lumaG*float64(p[1]) + lumaB*float64(p[2])
		if p[3] < 255 {
			a := float64(p[3]) / 255
			v = v*a + 255*(1-a)
		}
		if shift != 0 {
			n := v / 255
			v += shift * (1 - n) * n * 2
		}
		gray[i] = clamp(v)
	}
	return gray
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return v
	}
}

// CropRGBA returns the top-left region of a w×h RGBA buffer that is at
// most maxW pixels wide. The buffer is returned unchanged when it already
// fits.
func CropRGBA(pix []byte, w, h, maxW int) ([]byte, int) {
	if w <= maxW {
		return pix, w
	}
	out := make([]byte, maxW*h*4)
	for y := range h {
		copy(out[y*maxW*4:(y+1)*maxW*4], pix[y*w*4:y*w*4+maxW*4])
	}
	return out, maxW
}
