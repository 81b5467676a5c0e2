package state

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoded values start with a two byte header: the format version, then
// flags describing the body.
const (
	formatVersion byte = 1

	flagGzip byte = 1 << 0

	headerLen = 2

	// DefaultCompressAbove is the body size from which Codec gzips.
	DefaultCompressAbove = 1024
)

// Codec encodes values of one type as MessagePack, gzipping large bodies.
type Codec[T any] struct {
	// CompressAbove is the msgpack body size at which gzip kicks in.
	// Zero or less disables compression.
	CompressAbove int
}

func NewCodec[T any]() *Codec[T] {
	return &Codec[T]{CompressAbove: DefaultCompressAbove}
}

func (c *Codec[T]) Encode(value T) ([]byte, error) {
	var body bytes.Buffer
	enc := msgpack.NewEncoder(&body)
	enc.UseCompactInts(true)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}

	flags := byte(0)
	raw := body.Bytes()
	if c.CompressAbove > 0 && len(raw) >= c.CompressAbove {
		zipped, err := gzipBytes(raw)
		if err != nil {
			return nil, err
		}
		raw, flags = zipped, flagGzip
	}

	out := make([]byte, 0, headerLen+len(raw))
	out = append(out, formatVersion, flags)
	return append(out, raw...), nil
}

// Decode rejects data without a known header with ErrInvalidData.
func (c *Codec[T]) Decode(data []byte) (T, error) {
	var value T
	if len(data) < headerLen || data[0] != formatVersion {
		return value, ErrInvalidData
	}

	flags, body := data[1], data[headerLen:]
	switch flags {
	case 0:
	case flagGzip:
		var err error
		if body, err = gunzipBytes(body); err != nil {
			return value, fmt.Errorf("%w: %w", ErrInvalidData, err)
		}
	default:
		return value, ErrInvalidData
	}

	err := msgpack.Unmarshal(body, &value)
	return value, err
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
