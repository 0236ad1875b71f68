package management

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, br, zstd"

// maxBodySize caps a decoded management response.
const maxBodySize = 256 << 20

// readBody reads and decodes a response body according to its
// Content-Encoding. Multiple codings are undone in reverse order.
func readBody(r io.Reader, contentEncoding string) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		return nil, err
	}
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		if coding == "" || coding == "identity" {
			continue
		}
		raw, err = decode(raw, coding)
		if err != nil {
			return nil, fmt.Errorf("decode %s body: %w", coding, err)
		}
	}
	return raw, nil
}

func decode(data []byte, coding string) ([]byte, error) {
	var reader io.Reader
	switch coding {
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		reader = gr
	case "deflate":
		// zlib framing per RFC 9110, raw deflate as sent by some servers.
		if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer zr.Close()
			reader = zr
			break
		}
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		reader = fr
	case "br":
		reader = brotli.NewReader(bytes.NewReader(data))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", coding)
	}
	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}
