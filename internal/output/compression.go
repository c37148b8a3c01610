package output

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// CompressionType defines the compression algorithm to use
type CompressionType string

const (
	CompressionNone   CompressionType = "none"
	CompressionGzip   CompressionType = "gzip"
	CompressionSnappy CompressionType = "snappy"
)

// NewCompressedWriter wraps w with the requested stream compressor. The
// returned writer must be closed to flush trailing blocks; closing it does
// not close w.
func NewCompressedWriter(w io.Writer, compressionType CompressionType) (io.WriteCloser, error) {
	switch compressionType {
	case CompressionNone, "":
		return &nopCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

// NewCompressedReader wraps r with the matching stream decompressor.
func NewCompressedReader(r io.Reader, compressionType CompressionType) (io.Reader, error) {
	switch compressionType {
	case CompressionNone, "":
		return r, nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionSnappy:
		return snappy.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

type nopCloser struct {
	io.Writer
}

func (n *nopCloser) Close() error { return nil }
