package pickle

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"
)

// CompressLZ4 encodes b in the LZ4 frame format, used for the dispatcher's
// compressed-pickle and compressed-best-effort-pickle return formats.
func CompressLZ4(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressLZ4 is the inverse of CompressLZ4.
func DecompressLZ4(b []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(b))
	return io.ReadAll(zr)
}
