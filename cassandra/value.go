package cassandra

import (
	"encoding/binary"
	"math"
	"math/big"
	"net"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Value is a decoded column value. Exactly one of the typed fields is
// meaningful, selected by Type.ID; Null is true when the [bytes] payload
// had negative length (spec.md §3/§4.D). A present-but-empty payload
// (e.g. an empty blob) is Null == false with a zero-length typed field,
// preserving the "absent vs empty" distinction spec.md §9 calls for.
type Value struct {
	Type *ColumnType
	Null bool

	Bytes     []byte // Blob, Custom
	Text      string // Ascii, Text, VarChar
	Bool      bool
	Int32     int32
	Int64     int64 // BigInt, Counter
	Timestamp int64 // Timestamp, milliseconds since Unix epoch UTC
	Float32   float32
	Float64   float64
	UUID      uuid.UUID // Uuid, TimeUuid
	VarInt    *big.Int
	Decimal   decimal.Decimal
	IP        net.IP
	List      []Value
	Map       []MapEntry
}

// MapEntry is one key/value pair of a decoded Map value.
type MapEntry struct {
	Key   Value
	Value Value
}

// decodeValue decodes a [bytes] payload into a typed Value driven by t,
// per the fixed mapping table in spec.md §4.D.
func decodeValue(payload []byte, t *ColumnType) (Value, error) {
	v := Value{Type: t}
	if payload == nil {
		v.Null = true
		return v, nil
	}

	switch t.ID {
	case TypeAscii, TypeText, TypeVarChar:
		v.Text = string(payload)

	case TypeBlob, TypeCustom:
		v.Bytes = payload

	case TypeInet:
		if len(payload) != 4 && len(payload) != 16 {
			return v, errors.Errorf("cql: inet payload must be 4 or 16 bytes, got %d", len(payload))
		}
		v.IP = net.IP(payload)

	case TypeBoolean:
		// Decoders must accept 1- or 4-byte payloads, reading the last
		// byte (spec.md §4.D note on the historical 4-byte encoder quirk).
		if len(payload) == 0 {
			return v, errors.New("cql: empty boolean payload")
		}
		v.Bool = payload[len(payload)-1] != 0

	case TypeInt:
		if len(payload) != 4 {
			return v, errors.Errorf("cql: int payload must be 4 bytes, got %d", len(payload))
		}
		v.Int32 = int32(binary.BigEndian.Uint32(payload))

	case TypeBigInt, TypeCounter:
		if len(payload) != 8 {
			return v, errors.Errorf("cql: bigint/counter payload must be 8 bytes, got %d", len(payload))
		}
		v.Int64 = int64(binary.BigEndian.Uint64(payload))

	case TypeTimestamp:
		if len(payload) != 8 {
			return v, errors.Errorf("cql: timestamp payload must be 8 bytes, got %d", len(payload))
		}
		v.Timestamp = int64(binary.BigEndian.Uint64(payload))

	case TypeFloat:
		if len(payload) != 4 {
			return v, errors.Errorf("cql: float payload must be 4 bytes, got %d", len(payload))
		}
		v.Float32 = float32FromBits(binary.BigEndian.Uint32(payload))

	case TypeDouble:
		if len(payload) != 8 {
			return v, errors.Errorf("cql: double payload must be 8 bytes, got %d", len(payload))
		}
		v.Float64 = float64FromBits(binary.BigEndian.Uint64(payload))

	case TypeUuid, TypeTimeUuid:
		if len(payload) != 16 {
			return v, errors.Errorf("cql: uuid payload must be 16 bytes, got %d", len(payload))
		}
		id, err := uuid.FromBytes(payload)
		if err != nil {
			return v, errors.Wrap(err, "cql: decode uuid")
		}
		v.UUID = id

	case TypeVarInt:
		v.VarInt = varIntFromBytes(payload)

	case TypeDecimal:
		dec, err := decodeDecimal(payload)
		if err != nil {
			return v, err
		}
		v.Decimal = dec

	case TypeList, TypeSet:
		list, err := decodeCollectionElements(payload, t.Elem)
		if err != nil {
			return v, err
		}
		v.List = list

	case TypeMap:
		m, err := decodeMapEntries(payload, t.Key, t.Value)
		if err != nil {
			return v, err
		}
		v.Map = m

	default:
		return v, errors.Errorf("cql: unsupported column type id 0x%04x", uint16(t.ID))
	}

	return v, nil
}

// decodeCollectionElements decodes a List/Set body: [short] n, then n
// elements each framed as [short bytes] and decoded recursively.
func decodeCollectionElements(payload []byte, elem *ColumnType) ([]Value, error) {
	d := newDecoder(payload)
	n, err := d.readShort()
	if err != nil {
		return nil, err
	}
	out := make([]Value, n)
	for i := range out {
		raw, err := d.readShortBytes()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(raw, elem)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// decodeMapEntries decodes a Map body: [short] n, then n pairs of
// [short bytes] decoded by K and V respectively.
func decodeMapEntries(payload []byte, key, value *ColumnType) ([]MapEntry, error) {
	d := newDecoder(payload)
	n, err := d.readShort()
	if err != nil {
		return nil, err
	}
	out := make([]MapEntry, n)
	for i := range out {
		rawKey, err := d.readShortBytes()
		if err != nil {
			return nil, err
		}
		k, err := decodeValue(rawKey, key)
		if err != nil {
			return nil, err
		}
		rawVal, err := d.readShortBytes()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(rawVal, value)
		if err != nil {
			return nil, err
		}
		out[i] = MapEntry{Key: k, Value: val}
	}
	return out, nil
}

// varIntFromBytes decodes an arbitrary-length two's-complement
// big-endian integer (spec.md §4.D). math/big.Int is the native
// arbitrary-precision type spec.md §9 calls for, so sign-extension is
// handled explicitly rather than leaned on from a bounded integer type.
func varIntFromBytes(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	n := new(big.Int).SetBytes(b)
	if b[0]&0x80 != 0 {
		// Negative: n currently holds the unsigned magnitude of the raw
		// bytes; subtract 2^(8*len(b)) to get the signed value.
		full := new(big.Int).Lsh(big.NewInt(1), uint(8*len(b)))
		n.Sub(n, full)
	}
	return n
}

// varIntToBytes encodes a big.Int as minimum-width two's-complement
// big-endian, the inverse of varIntFromBytes.
func varIntToBytes(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0}
	}
	if n.Sign() > 0 {
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			// Need an explicit leading zero so the sign bit reads positive.
			b = append([]byte{0}, b...)
		}
		return b
	}
	// Negative: find the smallest byte width whose two's-complement
	// representation round-trips. That width is set by the bit length of
	// -n-1 (e.g. -128 fits one byte, -129 needs two).
	bitLen := new(big.Int).Not(n).BitLen()
	nBytes := bitLen/8 + 1
	full := new(big.Int).Lsh(big.NewInt(1), uint(8*nBytes))
	twos := new(big.Int).Add(full, n)
	b := twos.Bytes()
	for len(b) < nBytes {
		b = append([]byte{0}, b...)
	}
	return b
}

// decodeDecimal decodes [int scale][varint mantissa] (spec.md §4.D). The
// source's FF FF/01 01 sentinel quirk (spec.md §9) is deliberately not
// replicated here.
func decodeDecimal(payload []byte) (decimal.Decimal, error) {
	if len(payload) < 4 {
		return decimal.Decimal{}, errors.New("cql: decimal payload shorter than scale field")
	}
	scale := int32(binary.BigEndian.Uint32(payload[:4]))
	mantissa := varIntFromBytes(payload[4:])
	return decimal.NewFromBigInt(mantissa, -scale), nil
}

func encodeDecimal(d decimal.Decimal) []byte {
	scale := -d.Exponent()
	e := newEncoder()
	e.writeInt(scale)
	e.buf = append(e.buf, varIntToBytes(d.Coefficient())...)
	return e.bytes()
}

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

func float64FromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}

// encodeValue is the inverse of decodeValue, used only for EXECUTE
// argument binding (spec.md §4.D). A nil Value (Null == true) encodes as
// [bytes] length -1; every other case encodes the inner payload following
// the decode scheme and lets the caller wrap it as [bytes].
func encodeValue(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	t := v.Type
	switch t.ID {
	case TypeAscii, TypeText, TypeVarChar:
		return []byte(v.Text), nil

	case TypeBlob, TypeCustom:
		return v.Bytes, nil

	case TypeInet:
		return []byte(v.IP), nil

	case TypeBoolean:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case TypeInt:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.Int32))
		return b[:], nil

	case TypeBigInt, TypeCounter:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Int64))
		return b[:], nil

	case TypeTimestamp:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Timestamp))
		return b[:], nil

	case TypeFloat:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(v.Float32))
		return b[:], nil

	case TypeDouble:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float64))
		return b[:], nil

	case TypeUuid, TypeTimeUuid:
		id, err := v.UUID.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "cql: encode uuid")
		}
		return id, nil

	case TypeVarInt:
		return varIntToBytes(v.VarInt), nil

	case TypeDecimal:
		return encodeDecimal(v.Decimal), nil

	case TypeList, TypeSet:
		e := newEncoder()
		e.writeShort(uint16(len(v.List)))
		for _, elem := range v.List {
			raw, err := encodeValue(elem)
			if err != nil {
				return nil, err
			}
			e.writeShortBytes(raw)
		}
		return e.bytes(), nil

	case TypeMap:
		e := newEncoder()
		e.writeShort(uint16(len(v.Map)))
		for _, entry := range v.Map {
			rawKey, err := encodeValue(entry.Key)
			if err != nil {
				return nil, err
			}
			e.writeShortBytes(rawKey)
			rawVal, err := encodeValue(entry.Value)
			if err != nil {
				return nil, err
			}
			e.writeShortBytes(rawVal)
		}
		return e.bytes(), nil

	default:
		return nil, errors.Errorf("cql: unsupported column type id 0x%04x", uint16(t.ID))
	}
}
