package store

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm selects the block compression codec segments are held under.
type Algorithm string

const (
	// None stores blocks uncompressed
	None Algorithm = "none"
	// Gzip favors compatibility
	Gzip Algorithm = "gzip"
	// Snappy favors speed with decent compression
	Snappy Algorithm = "snappy"
	// LZ4 is the fastest codec
	LZ4 Algorithm = "lz4"
	// Zstd favors compression ratio
	Zstd Algorithm = "zstd"
	// S2 is Snappy-compatible with better compression
	S2 Algorithm = "s2"
)

// Codec compresses and decompresses block payloads. Implementations are
// safe for concurrent use.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Algorithm
}

// NewCodec creates a codec for the given algorithm
func NewCodec(algorithm Algorithm) (Codec, error) {
	switch algorithm {
	case None, "":
		return noneCodec{}, nil
	case Gzip:
		return newGzipCodec(), nil
	case Snappy:
		return snappyCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case Zstd:
		return newZstdCodec()
	case S2:
		return s2Codec{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

type noneCodec struct{}

func (noneCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCodec) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCodec) Algorithm() Algorithm                   { return None }

type gzipCodec struct {
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCodec() *gzipCodec {
	gc := &gzipCodec{}
	gc.writerPool.New = func() interface{} {
		return gzip.NewWriter(nil)
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gc *gzipCodec) Decompress(data []byte) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func (gc *gzipCodec) Algorithm() Algorithm { return Gzip }

type snappyCodec struct{}

func (snappyCodec) Compress(data []byte) ([]byte, error)   { return snappy.Encode(nil, data), nil }
func (snappyCodec) Decompress(data []byte) ([]byte, error) { return snappy.Decode(nil, data) }
func (snappyCodec) Algorithm() Algorithm                   { return Snappy }

type s2Codec struct{}

func (s2Codec) Compress(data []byte) ([]byte, error)   { return s2.Encode(nil, data), nil }
func (s2Codec) Decompress(data []byte) ([]byte, error) { return s2.Decode(nil, data) }
func (s2Codec) Algorithm() Algorithm                   { return S2 }

type lz4Codec struct{}

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

func (lz4Codec) Algorithm() Algorithm { return LZ4 }

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (zc *zstdCodec) Compress(data []byte) ([]byte, error) {
	return zc.enc.EncodeAll(data, nil), nil
}

func (zc *zstdCodec) Decompress(data []byte) ([]byte, error) {
	return zc.dec.DecodeAll(data, nil)
}

func (zc *zstdCodec) Algorithm() Algorithm { return Zstd }
