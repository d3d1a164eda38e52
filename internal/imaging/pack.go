package imaging

// Printer geometry.
const (
	PrintWidth    = 384
	BytesPerRow   = PrintWidth / 8
	MinRows       = 90
	MinBufferSize = MinRows * BytesPerRow
)

// Pack encodes b as printer rows: every row is exactly PrintWidth pixels
// (narrower rows are padded white, wider ones truncated), eight pixels per
// byte with the first pixel in bit 0. The result is zero-padded to
// MinBufferSize.
func Pack(b *Bitmap) []byte {
	out := make([]byte, max(b.Height*BytesPerRow, MinBufferSize))
	w := min(b.Width, PrintWidth)
	for y := range b.Height {
		row := out[y*BytesPerRow : (y+1)*BytesPerRow]
		for x := range w {
			if b.At(x, y) {
				row[x/8] |= 1 << (x % 8)
			}
		}
	}
	return out
}

// Unpack decodes rows packed by Pack back into a PrintWidth-wide bitmap.
func Unpack(data []byte, rows int) *Bitmap {
	b := NewBitmap(PrintWidth, rows)
	for y := range rows {
		for x := range PrintWidth {
			b.set(x, y, data[y*BytesPerRow+x/8]>>(x%8)&1 == 1)
		}
	}
	return b
}
