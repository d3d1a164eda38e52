// Package job turns a raw RGBA buffer into a packed print job.
package job

import (
	"fmt"
	"log/slog"

	"github.com/chaz8081/catprint/internal/imaging"
	"github.com/chaz8081/catprint/internal/printer"
)

// Options controls how an image is rendered for printing. An empty Dither
// selects Floyd–Steinberg and a zero Intensity printer.DefaultIntensity.
type Options struct {
	Dither     imaging.DitherMethod
	Brightness int
	Rotation   imaging.Rotation
	Flip       imaging.FlipMode
	Intensity  byte
}

// DefaultOptions returns options that print the image as-is. Dither and
// Intensity are left zero so the client's configured defaults apply.
func DefaultOptions() Options {
	return Options{
		Brightness: imaging.NeutralBrightness,
		Rotation:   imaging.Rotate0,
		Flip:       imaging.FlipNone,
	}
}

// Job is a packed image ready to be sent to the printer.
type Job struct {
	Buffer    []byte
	Lines     int // rows that carry image data, before minimum padding
	Intensity byte
}

// Assemble renders a w×h RGBA buffer (4 bytes per pixel). Images wider
// than the print head are cropped to their left imaging.PrintWidth
// columns, not scaled.
func Assemble(pix []byte, w, h int, opts Options) (*Job, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("job: invalid image size %dx%d", w, h)
	}
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("job: pixel buffer is %d bytes, want %d for %dx%d", len(pix), w*h*4, w, h)
	}
	if opts.Dither == "" {
		opts.Dither = imaging.DitherSteinberg
	}
	if opts.Intensity == 0 {
		opts.Intensity = printer.DefaultIntensity
	}
	flip, err := imaging.ParseFlip(string(opts.Flip))
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	rotation, err := imaging.ParseRotation(int(opts.Rotation))
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}

	if w > imaging.PrintWidth {
		slog.Debug("[JOB] cropping image to print width", "width", w, "cropped", imaging.PrintWidth)
		pix, w = imaging.CropRGBA(pix, w, h, imaging.PrintWidth)
	}

	gray := imaging.Grayscale(pix, w, h, opts.Brightness)
	bin, err := imaging.Dither(opts.Dither, gray, w, h)
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	bm := imaging.FromBinary(bin, w, h)
	bm = imaging.Flip(bm, flip)
	bm = imaging.Rotate(bm, rotation)

	return &Job{
		Buffer:    imaging.Pack(bm),
		Lines:     bm.Height,
		Intensity: opts.Intensity,
	}, nil
}
