package cassandra

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const frameHeaderLength = 8

// frame flag bits (spec.md §3: "flags (1 byte, bit 0=compressed, bit 1=traced)").
const (
	flagCompressed byte = 0x01
	flagTraced     byte = 0x02
)

// Header is the fixed 8-byte frame preamble. It is never compressed
// (spec.md §3 invariant).
type Header struct {
	Version  ProtocolVersion
	Response bool
	Flags    byte
	StreamID int8
	Opcode   Opcode
	Length   uint32
}

// Frame is a header plus a body. For responses, Body has already been
// decompressed (if negotiated) by the time callers see it.
type Frame struct {
	Header Header
	Body   []byte
}

// writeFrame assembles and writes a request frame. body is the
// already-encoded, not-yet-compressed payload; compressor may be nil.
func writeFrame(stream ByteStream, version ProtocolVersion, flags byte, streamID int8, opcode Opcode, body []byte, compressor BodyCompressor) error {
	if !validForDialect(opcode, version) {
		return errors.Errorf("cql: opcode %s not valid for protocol %s", opcode, version)
	}
	if compressor != nil && len(body) > 0 {
		compressed, err := compressor.Compress(body)
		if err != nil {
			return errors.Wrap(err, "cql: compress frame body")
		}
		body = compressed
		flags |= flagCompressed
	}
	if len(body) > MaxFrameSize {
		return errors.Errorf("cql: frame body length %d exceeds maximum %d", len(body), MaxFrameSize)
	}

	out := make([]byte, frameHeaderLength+len(body))
	out[0] = version.requestByte()
	out[1] = flags
	out[2] = byte(streamID)
	out[3] = byte(opcode)
	binary.BigEndian.PutUint32(out[4:8], uint32(len(body)))
	copy(out[8:], body)

	return stream.WriteFull(out)
}

// readFrame reads exactly one frame: the 8-byte header, then exactly
// Length more bytes, decompressing the body if the compressed flag is
// set. A short read or a direction-bit mismatch is a WireFormatError
// (spec.md §4.C).
func readFrame(stream ByteStream, compressor BodyCompressor) (*Frame, error) {
	var hdr [frameHeaderLength]byte
	if err := stream.ReadFull(hdr[:]); err != nil {
		return nil, wireErr("short read of frame header: " + err.Error())
	}

	if !isResponseByte(hdr[0]) {
		return nil, wireErr("response frame missing direction bit")
	}

	length := binary.BigEndian.Uint32(hdr[4:8])
	if length > MaxFrameSize {
		return nil, wireErr("frame length exceeds maximum")
	}

	body := make([]byte, length)
	if length > 0 {
		if err := stream.ReadFull(body); err != nil {
			return nil, wireErr("short read of frame body: " + err.Error())
		}
	}

	flags := hdr[1]
	if flags&flagCompressed != 0 {
		if compressor == nil {
			return nil, wireErr("compressed frame received but no compressor negotiated")
		}
		decompressed, err := compressor.Decompress(body)
		if err != nil {
			return nil, wireErr("decompress frame body: " + err.Error())
		}
		body = decompressed
	}

	return &Frame{
		Header: Header{
			Version:  versionOf(hdr[0]),
			Response: true,
			Flags:    flags,
			StreamID: int8(hdr[2]),
			Opcode:   Opcode(hdr[3]),
			Length:   length,
		},
		Body: body,
	}, nil
}
