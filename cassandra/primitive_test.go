package cassandra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrip_String(t *testing.T) {
	e := newEncoder()
	e.writeString("hello")
	d := newDecoder(e.bytes())
	s, err := d.readString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)
	require.True(t, d.atEnd())
}

func TestPrimitiveRoundTrip_LongString(t *testing.T) {
	e := newEncoder()
	e.writeLongString("a longer string value")
	d := newDecoder(e.bytes())
	s, err := d.readLongString()
	require.NoError(t, err)
	require.Equal(t, "a longer string value", s)
}

func TestPrimitiveRoundTrip_Bytes(t *testing.T) {
	e := newEncoder()
	e.writeBytes([]byte{1, 2, 3})
	e.writeBytes(nil)
	d := newDecoder(e.bytes())

	b, err := d.readBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, b)

	b, err = d.readBytes()
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestPrimitiveRoundTrip_ShortBytes(t *testing.T) {
	e := newEncoder()
	e.writeShortBytes([]byte{0xde, 0xad})
	d := newDecoder(e.bytes())
	b, err := d.readShortBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad}, b)
}

func TestPrimitiveRoundTrip_StringList(t *testing.T) {
	e := newEncoder()
	e.writeStringList([]string{"a", "b", "c"})
	d := newDecoder(e.bytes())
	list, err := d.readStringList()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, list)
}

func TestPrimitiveRoundTrip_StringMap(t *testing.T) {
	e := newEncoder()
	e.writeStringMap(map[string]string{"CQL_VERSION": "3.0.0"})
	d := newDecoder(e.bytes())
	m, err := d.readStringMap()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"CQL_VERSION": "3.0.0"}, m)
}

func TestPrimitiveRoundTrip_Consistency(t *testing.T) {
	e := newEncoder()
	e.writeConsistency(Quorum)
	d := newDecoder(e.bytes())
	c, err := d.readConsistency()
	require.NoError(t, err)
	require.Equal(t, Quorum, c)
}

func TestDecode_ShortReadIsWireFormatError(t *testing.T) {
	d := newDecoder([]byte{0x00}) // declares nothing but a single byte
	_, err := d.readShort()
	require.Error(t, err)
	var wfe *WireFormatError
	require.ErrorAs(t, err, &wfe)
}

func TestDecode_InvalidUTF8IsWireFormatError(t *testing.T) {
	e := newEncoder()
	e.writeShort(2)
	e.buf = append(e.buf, 0xff, 0xfe) // invalid UTF-8
	d := newDecoder(e.bytes())
	_, err := d.readString()
	require.Error(t, err)
	var wfe *WireFormatError
	require.ErrorAs(t, err, &wfe)
}

// S1 from spec.md §8: STARTUP body for {CQL_VERSION: "3.0.0"}.
func TestStartupBody_MatchesScenarioS1(t *testing.T) {
	e := newEncoder()
	e.writeStringMap(map[string]string{"CQL_VERSION": "3.0.0"})
	require.Equal(t, []byte{
		0x00, 0x01, // map entry count
		0x00, 0x0B, 'C', 'Q', 'L', '_', 'V', 'E', 'R', 'S', 'I', 'O', 'N',
		0x00, 0x05, '3', '.', '0', '.', '0',
	}, e.bytes())
}
