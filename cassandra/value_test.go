package cassandra

import (
	"math/big"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func encodeDecodeRoundTrip(t *testing.T, v Value) Value {
	t.Helper()
	raw, err := encodeValue(v)
	require.NoError(t, err)
	got, err := decodeValue(raw, v.Type)
	require.NoError(t, err)
	return got
}

func TestValueRoundTrip_Int(t *testing.T) {
	v := Value{Type: &ColumnType{ID: TypeInt}, Int32: -42}
	got := encodeDecodeRoundTrip(t, v)
	require.Equal(t, v.Int32, got.Int32)
}

func TestValueRoundTrip_BigInt(t *testing.T) {
	v := Value{Type: &ColumnType{ID: TypeBigInt}, Int64: 1 << 40}
	got := encodeDecodeRoundTrip(t, v)
	require.Equal(t, v.Int64, got.Int64)
}

func TestValueRoundTrip_Text(t *testing.T) {
	v := Value{Type: &ColumnType{ID: TypeVarChar}, Text: "x"}
	got := encodeDecodeRoundTrip(t, v)
	require.Equal(t, "x", got.Text)
}

func TestValueRoundTrip_Uuid(t *testing.T) {
	id := uuid.New()
	v := Value{Type: &ColumnType{ID: TypeUuid}, UUID: id}
	got := encodeDecodeRoundTrip(t, v)
	require.Equal(t, id, got.UUID)
}

func TestValueRoundTrip_Inet(t *testing.T) {
	v4 := Value{Type: &ColumnType{ID: TypeInet}, IP: net.IPv4(192, 168, 1, 1).To4()}
	got := encodeDecodeRoundTrip(t, v4)
	require.True(t, v4.IP.Equal(got.IP))
}

func TestValueRoundTrip_Float64(t *testing.T) {
	v := Value{Type: &ColumnType{ID: TypeDouble}, Float64: 3.14159}
	got := encodeDecodeRoundTrip(t, v)
	require.InDelta(t, v.Float64, got.Float64, 1e-12)
}

func TestValueRoundTrip_List(t *testing.T) {
	elem := &ColumnType{ID: TypeInt}
	v := Value{
		Type: &ColumnType{ID: TypeList, Elem: elem},
		List: []Value{
			{Type: elem, Int32: 1},
			{Type: elem, Int32: 2},
			{Type: elem, Int32: 3},
		},
	}
	got := encodeDecodeRoundTrip(t, v)
	require.Len(t, got.List, 3)
	for i, e := range got.List {
		require.Equal(t, v.List[i].Int32, e.Int32)
	}
}

func TestValueRoundTrip_Map(t *testing.T) {
	keyType := &ColumnType{ID: TypeVarChar}
	valType := &ColumnType{ID: TypeInt}
	v := Value{
		Type: &ColumnType{ID: TypeMap, Key: keyType, Value: valType},
		Map: []MapEntry{
			{Key: Value{Type: keyType, Text: "a"}, Value: Value{Type: valType, Int32: 1}},
		},
	}
	got := encodeDecodeRoundTrip(t, v)
	require.Len(t, got.Map, 1)
	require.Equal(t, "a", got.Map[0].Key.Text)
	require.Equal(t, int32(1), got.Map[0].Value.Int32)
}

func TestValueRoundTrip_NestedCollection(t *testing.T) {
	// List<Set<Int>>, exercising the recursive ColumnType tree.
	innerElem := &ColumnType{ID: TypeInt}
	setType := &ColumnType{ID: TypeSet, Elem: innerElem}
	v := Value{
		Type: &ColumnType{ID: TypeList, Elem: setType},
		List: []Value{
			{Type: setType, List: []Value{{Type: innerElem, Int32: 7}}},
		},
	}
	got := encodeDecodeRoundTrip(t, v)
	require.Len(t, got.List, 1)
	require.Len(t, got.List[0].List, 1)
	require.Equal(t, int32(7), got.List[0].List[0].Int32)
}

func TestBoolean_AcceptsOneOrFourByteWidth(t *testing.T) {
	// spec.md §4.D / §9: some encoders send a 4-byte boolean; decoders
	// must accept 1 or 4 bytes and read the last byte.
	typ := &ColumnType{ID: TypeBoolean}

	v, err := decodeValue([]byte{0x01}, typ)
	require.NoError(t, err)
	require.True(t, v.Bool)

	v, err = decodeValue([]byte{0x00, 0x00, 0x00, 0x01}, typ)
	require.NoError(t, err)
	require.True(t, v.Bool)

	v, err = decodeValue([]byte{0x00, 0x00, 0x00, 0x00}, typ)
	require.NoError(t, err)
	require.False(t, v.Bool)
}

func TestNullVsEmptyDistinction(t *testing.T) {
	typ := &ColumnType{ID: TypeBlob}
	v, err := decodeValue(nil, typ)
	require.NoError(t, err)
	require.True(t, v.Null)

	v, err = decodeValue([]byte{}, typ)
	require.NoError(t, err)
	require.False(t, v.Null)
	require.Empty(t, v.Bytes)
}

// S6 from spec.md §8: Decimal{scale:2, mantissa:-12345}. The scenario's
// literal bytes assume a fixed 4-byte mantissa (00 00 00 02 FF FF CF C7);
// this encoder instead follows the §9 minimum-width two's-complement note,
// so -12345 takes the 2 bytes that round-trip it (CF C7) rather than 4.
// The logical value round-trips identically either way.
func TestDecimal_MatchesScenarioS6(t *testing.T) {
	d := decimal.New(-12345, -2)
	raw := encodeDecimal(d)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02, 0xCF, 0xC7}, raw)

	got, err := decodeDecimal(raw)
	require.NoError(t, err)
	require.True(t, d.Equal(got))
}

// S6: VarInt for math.MaxInt64 encodes as 7F FF FF FF FF FF FF FF.
func TestVarInt_MatchesScenarioS6(t *testing.T) {
	n := big.NewInt(9223372036854775807) // int64 max
	raw := varIntToBytes(n)
	require.Equal(t, []byte{0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, raw)

	got := varIntFromBytes(raw)
	require.Equal(t, 0, n.Cmp(got))
}

func TestVarInt_NegativeRoundTrip(t *testing.T) {
	n := big.NewInt(-1)
	raw := varIntToBytes(n)
	require.Equal(t, []byte{0xFF}, raw)
	got := varIntFromBytes(raw)
	require.Equal(t, 0, n.Cmp(got))

	n2 := big.NewInt(-129)
	raw2 := varIntToBytes(n2)
	got2 := varIntFromBytes(raw2)
	require.Equal(t, 0, n2.Cmp(got2))
}

func TestVarInt_ZeroRoundTrip(t *testing.T) {
	n := big.NewInt(0)
	raw := varIntToBytes(n)
	require.Equal(t, []byte{0x00}, raw)
	got := varIntFromBytes(raw)
	require.Equal(t, 0, n.Cmp(got))
}
