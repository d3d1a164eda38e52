// internal/ble/protocol/chunk.go
package protocol

// DataChunkSize is the number of bytes written to the data characteristic
// per write: one printed row.
const DataChunkSize = 48

// ChunkBytes splits buf into consecutive slices of at most size bytes.
// The slices alias buf. Returns nil for an empty buffer.
func ChunkBytes(buf []byte, size int) [][]byte {
	if len(buf) == 0 {
		return nil
	}
	if size <= 0 {
		size = DataChunkSize
	}
	chunks := make([][]byte, 0, (len(buf)+size-1)/size)
	for len(buf) > 0 {
		n := min(size, len(buf))
		chunks = append(chunks, buf[:n:n])
		buf = buf[n:]
	}
	return chunks
}
