package cassandra

import (
	"encoding/binary"
	"net"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// WireFormatError marks any violation of the protocol's framing rules: a
// short read, invalid UTF-8 in a [string]/[long string], or a declared
// length that doesn't match what was actually available. Per spec.md §7
// it is always fatal for the Session that raised it.
type WireFormatError struct {
	Reason string
}

func (e *WireFormatError) Error() string {
	return "cql: wire format error: " + e.Reason
}

func wireErr(reason string) error {
	return errors.WithStack(&WireFormatError{Reason: reason})
}

// decoder walks a frame body left to right, decoding primitives per
// spec.md §4.B. It never reads from the network directly: the Frame
// Layer hands it a fully-buffered (and, if negotiated, already
// decompressed) body.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(body []byte) *decoder {
	return &decoder{buf: body}
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.pos
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, wireErr("short read")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readShort decodes [short]: a 2-byte unsigned integer.
func (d *decoder) readShort() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// readInt decodes [int]: a signed 4-byte big-endian integer.
func (d *decoder) readInt() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// readLong decodes an 8-byte signed big-endian integer ([long], used by
// BigInt/Counter/Timestamp column values).
func (d *decoder) readLong() (int64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// readString decodes [string]: [short] length n, then n UTF-8 bytes.
func (d *decoder) readString() (string, error) {
	n, err := d.readShort()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", wireErr("invalid UTF-8 in [string]")
	}
	return string(b), nil
}

// readLongString decodes [long string]: [int] length n (non-negative),
// then n UTF-8 bytes.
func (d *decoder) readLongString() (string, error) {
	n, err := d.readInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", wireErr("negative [long string] length")
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", wireErr("invalid UTF-8 in [long string]")
	}
	return string(b), nil
}

// readBytes decodes [bytes]: [int] length n; n<0 means null (nil, no
// error). The negative-length-is-null convention is preserved through
// decode per spec.md §3.
func (d *decoder) readBytes() ([]byte, error) {
	n, err := d.readInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// readShortBytes decodes [short bytes]: [short] length n, then n bytes.
// There is no null form.
func (d *decoder) readShortBytes() ([]byte, error) {
	n, err := d.readShort()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// readStringList decodes [string list]: [short] n, then n [string].
func (d *decoder) readStringList() ([]string, error) {
	n, err := d.readShort()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// readStringMap decodes [string map]: [short] n, then n pairs of [string].
func (d *decoder) readStringMap() (map[string]string, error) {
	n, err := d.readShort()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint16(0); i < n; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// readStringMultiMap decodes [string multimap]: [short] n, then n pairs
// of [string] and [string list].
func (d *decoder) readStringMultiMap() (map[string][]string, error) {
	n, err := d.readShort()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, n)
	for i := uint16(0); i < n; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readStringList()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// readInetWithPort decodes the [inet] used by EVENT frames: a one-byte
// address length (4 or 16), that many address bytes, then an [int] port.
// This is distinct from the bare Inet column payload in spec.md §4.D,
// which carries only the raw address bytes.
func (d *decoder) readInetWithPort() (addr string, port int32, err error) {
	n, err := d.readByte()
	if err != nil {
		return "", 0, err
	}
	ip, err := d.take(int(n))
	if err != nil {
		return "", 0, err
	}
	p, err := d.readInt()
	if err != nil {
		return "", 0, err
	}
	return net.IP(ip).String(), p, nil
}

// readConsistency decodes [consistency]: a [short].
func (d *decoder) readConsistency() (Consistency, error) {
	n, err := d.readShort()
	if err != nil {
		return 0, err
	}
	return Consistency(n), nil
}

// atEnd reports whether the decoder has consumed the entire body.
// Session.Close uses it to drain a live row set's body. Under the
// extensibility clause (spec.md §8 property 5), trailing bytes are
// tolerated and discarded by the caller, never treated as an error by the
// decoder itself.
func (d *decoder) atEnd() bool {
	return d.remaining() == 0
}

// encoder accumulates a frame body per spec.md §4.B's primitive layouts.
type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{buf: make([]byte, 0, 64)}
}

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeShort(n uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], n)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeInt(n int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeLong(n int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeString(s string) {
	e.writeShort(uint16(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeLongString(s string) {
	e.writeInt(int32(len(s)))
	e.buf = append(e.buf, s...)
}

// writeBytes encodes [bytes]. A nil slice is encoded as null (length -1),
// matching the decode convention; a non-nil empty slice is length 0.
func (e *encoder) writeBytes(b []byte) {
	if b == nil {
		e.writeInt(-1)
		return
	}
	e.writeInt(int32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) writeShortBytes(b []byte) {
	e.writeShort(uint16(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) writeStringList(list []string) {
	e.writeShort(uint16(len(list)))
	for _, s := range list {
		e.writeString(s)
	}
}

func (e *encoder) writeStringMap(m map[string]string) {
	e.writeShort(uint16(len(m)))
	for k, v := range m {
		e.writeString(k)
		e.writeString(v)
	}
}

func (e *encoder) writeConsistency(c Consistency) {
	e.writeShort(uint16(c))
}
