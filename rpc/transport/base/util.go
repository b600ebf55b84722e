package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/ValentinKolb/theaterctl/rpc/common"
)

// HeaderSize is the size of the length prefix of every frame
const HeaderSize = 4

// EncodeHeader returns the length prefix for a payload of the given length (uint32, big endian)
func EncodeHeader(length uint32) [HeaderSize]byte {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], length)
	return header
}

// DecodeHeader parses a length prefix
func DecodeHeader(header [HeaderSize]byte) uint32 {
	return binary.BigEndian.Uint32(header[:])
}

// Encode returns the complete frame for a payload: the length prefix followed by the payload
func Encode(payload []byte) []byte {
	header := EncodeHeader(uint32(len(payload)))
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, header[:]...)
	return append(frame, payload...)
}

// writeFrame writes a frame to the connection with the format:
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
// A maxSize <= 0 disables the size check.
func writeFrame(w io.Writer, data []byte, maxSize int) error {
	if maxSize > 0 && len(data) > maxSize {
		return fmt.Errorf("%w: %d > %d bytes", common.ErrFrameTooLarge, len(data), maxSize)
	}

	header := EncodeHeader(uint32(len(data)))

	// Skip empty payloads, a zero length write is not a no-op on every net.Conn
	b := net.Buffers{header[:]}
	if len(data) > 0 {
		b = append(b, data)
	}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads exactly one frame using the provided buffer.
// If the buffer is too small, it will allocate a new buffer for the data.
// A header announcing more than maxSize bytes is rejected before allocating.
func readFrame(r io.Reader, buf []byte, maxSize int) ([]byte, error) {
	// Read header
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	contentLength := DecodeHeader(header)

	if maxSize > 0 && uint64(contentLength) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d bytes", common.ErrFrameTooLarge, contentLength, maxSize)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return []byte{}, nil
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return nil, err
	}

	return buf[:contentLength], nil
}
