package cassandra

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionAlgorithm names a body transform negotiable at STARTUP
// (spec.md §6: "currently recognized: lz4, snappy").
type CompressionAlgorithm string

const (
	CompressionNone   CompressionAlgorithm = ""
	CompressionLZ4    CompressionAlgorithm = "lz4"
	CompressionSnappy CompressionAlgorithm = "snappy"
)

// BodyCompressor transforms a frame body. SPEC_FULL.md §4.I: the flag and
// negotiation are always preserved; the transform itself is now
// implemented, not deferred.
type BodyCompressor interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

func newCompressor(alg CompressionAlgorithm) BodyCompressor {
	switch alg {
	case CompressionLZ4:
		return lz4Compressor{}
	case CompressionSnappy:
		return snappyCompressor{}
	default:
		return nil
	}
}

// lz4Compressor wraps the block format with a 4-byte big-endian
// uncompressed-length prefix, the convention reference CQL drivers use on
// the wire (the raw LZ4 block format alone does not self-describe its
// decompressed size).
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return string(CompressionLZ4) }

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	out := make([]byte, 4+bound)
	binary.BigEndian.PutUint32(out[:4], uint32(len(src)))

	var c lz4.Compressor
	n, err := c.CompressBlock(src, out[4:])
	if err != nil {
		return nil, err
	}
	if n == 0 && len(src) > 0 {
		// Incompressible input: lz4 reports n==0 when it couldn't beat
		// storing the data raw. Not expected for CQL bodies but handled
		// rather than silently truncating.
		return nil, wireErr("lz4 compression produced empty block for non-empty input")
	}
	return out[:4+n], nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, wireErr("lz4 payload shorter than length prefix")
	}
	uncompressedLen := binary.BigEndian.Uint32(src[:4])
	dst := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(src[4:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// snappyCompressor wraps raw snappy block encoding; snappy's own framing
// already carries the decompressed length, so no extra prefix is needed.
type snappyCompressor struct{}

func (snappyCompressor) Name() string { return string(CompressionSnappy) }

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	return snappy.Decode(nil, src)
}
