package cassandra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildEventFrame(streamID int8, body []byte) []byte {
	return buildResponseFrame(ProtocolVersion2, streamID, OpEvent, body)
}

func TestParseEventFrame_TopologyChange(t *testing.T) {
	e := newEncoder()
	e.writeString(string(EventTopologyChange))
	e.writeString("NEW_NODE")
	e.writeByte(4)
	e.buf = append(e.buf, 10, 0, 0, 1)
	e.writeInt(9042)

	evt, err := parseEventFrame(e.bytes())
	require.NoError(t, err)
	require.Equal(t, EventTopologyChange, evt.Kind)
	require.Equal(t, "NEW_NODE", evt.Change)
	require.Equal(t, "10.0.0.1", evt.Address)
}

func TestParseEventFrame_SchemaChange(t *testing.T) {
	e := newEncoder()
	e.writeString(string(EventSchemaChange))
	e.writeString("UPDATED")
	e.writeString("myks")
	e.writeString("mytable")

	evt, err := parseEventFrame(e.bytes())
	require.NoError(t, err)
	require.Equal(t, EventSchemaChange, evt.Kind)
	require.Equal(t, SchemaUpdated, evt.Schema.Change)
	require.Equal(t, "myks", evt.Schema.Keyspace)
	require.Equal(t, "mytable", evt.Schema.Table)
}

func TestParseEventFrame_UnknownKindIsError(t *testing.T) {
	e := newEncoder()
	e.writeString("NOT_A_REAL_KIND")
	_, err := parseEventFrame(e.bytes())
	require.Error(t, err)
}

func TestRegister_RejectsUnknownEventName(t *testing.T) {
	sess, _ := newTestSession(ProtocolVersion2)
	sess.state = stateReady

	_, err := sess.Register([]string{"NOT_AN_EVENT"})
	require.Error(t, err)
}

// SPEC_FULL.md §4.M: a successful REGISTER permanently converts the
// session into an event-only listener, and the returned channel delivers
// EVENT frames pushed on stream id -1.
func TestRegister_SwitchesToEventModeAndDeliversEvents(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.state = stateReady

	registerResult := newEncoder()
	registerResult.writeInt(int32(ResultVoid))
	stream.readBuf = append(stream.readBuf, buildResponseFrame(ProtocolVersion2, 0, OpResult, registerResult.bytes())...)

	schemaEvent := newEncoder()
	schemaEvent.writeString(string(EventSchemaChange))
	schemaEvent.writeString("CREATED")
	schemaEvent.writeString("myks")
	schemaEvent.writeString("")
	stream.readBuf = append(stream.readBuf, buildEventFrame(-1, schemaEvent.bytes())...)

	ch, err := sess.Register([]string{"SCHEMA_CHANGE"})
	require.NoError(t, err)
	require.True(t, sess.eventMode)

	select {
	case evt := <-ch:
		require.Equal(t, EventSchemaChange, evt.Kind)
		require.Equal(t, "myks", evt.Schema.Keyspace)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	// Once in event mode, ordinary requests are rejected.
	_, err = sess.Query("SELECT 1", Quorum, nil)
	require.Equal(t, ErrEventSession, err)
}
