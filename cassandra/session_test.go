package cassandra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildResponseFrame(version ProtocolVersion, streamID int8, opcode Opcode, body []byte) []byte {
	e := newEncoder()
	hdr := []byte{
		version.responseByte(),
		0x00,
		byte(streamID),
		byte(opcode),
	}
	e.buf = append(e.buf, hdr...)
	e.writeInt(int32(len(body)))
	e.buf = append(e.buf, body...)
	return e.buf
}

func newTestSession(protocol ProtocolVersion) (*Session, *fakeStream) {
	stream := &fakeStream{}
	sess := &Session{
		stream:   stream,
		protocol: protocol,
		logger:   NopLogger(),
	}
	return sess, stream
}

// S1 from spec.md §8: STARTUP on protocol v1 writes header 01 00 00 01
// 00 00 00 16 followed by the CQL_VERSION map body, and a bare READY
// response (81 00 00 02 00 00 00 00) brings the session to Ready.
func TestSessionStartup_MatchesScenarioS1(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion1)
	stream.readBuf = buildResponseFrame(ProtocolVersion1, 0, OpReady, nil)

	err := sess.ensureStarted()
	require.NoError(t, err)
	require.Equal(t, stateReady, sess.state)

	require.Equal(t, []byte{0x01, 0x00, 0x00, byte(OpStartup), 0x00, 0x00, 0x00, 0x16}, stream.writeBuf[:8])

	body := stream.writeBuf[8:]
	d := newDecoder(body)
	m, err := d.readStringMap()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"CQL_VERSION": "3.0.0"}, m)
}

func TestSessionStartup_AuthenticateThenReady(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.auth = staticAuthenticator{response: []byte("secret")}

	authBody := newEncoder()
	authBody.writeString("org.apache.cassandra.auth.PasswordAuthenticator")
	stream.readBuf = append(stream.readBuf, buildResponseFrame(ProtocolVersion2, 0, OpAuthenticate, authBody.bytes())...)
	stream.readBuf = append(stream.readBuf, buildResponseFrame(ProtocolVersion2, 1, OpAuthSuccess, nil)...)

	err := sess.ensureStarted()
	require.NoError(t, err)
	require.Equal(t, stateReady, sess.state)
}

type staticAuthenticator struct {
	response []byte
}

func (a staticAuthenticator) Challenge(request []byte) ([]byte, error) {
	return a.response, nil
}

func TestSessionStartup_ErrorDuringNegotiation(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)

	errBody := newEncoder()
	errBody.writeInt(int32(ErrCodeProtocol))
	errBody.writeString("bad version")
	stream.readBuf = buildResponseFrame(ProtocolVersion2, 0, OpError, errBody.bytes())

	err := sess.ensureStarted()
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ErrCodeProtocol, pe.Code)
	require.Equal(t, stateClosed, sess.state)
	require.True(t, stream.closed)
}

func TestSessionQuery_RoundTripVoidResult(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.state = stateReady

	resultBody := newEncoder()
	resultBody.writeInt(int32(ResultVoid))
	stream.readBuf = buildResponseFrame(ProtocolVersion2, 0, OpResult, resultBody.bytes())

	result, err := sess.Query("INSERT INTO t (a) VALUES (1)", Quorum, nil)
	require.NoError(t, err)
	require.Equal(t, ResultVoid, result.Kind)
	require.Nil(t, result.Rows)
}

func TestSessionQuery_ServerErrorSurfacesAsProtocolError(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.state = stateReady

	errBody := newEncoder()
	errBody.writeInt(int32(ErrCodeSyntax))
	errBody.writeString("line 1:0 no viable alternative")
	stream.readBuf = buildResponseFrame(ProtocolVersion2, 0, OpError, errBody.bytes())

	_, err := sess.Query("GARBAGE", Quorum, nil)
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, ErrCodeSyntax, pe.Code)
}

func TestSession_GuardRequest_RejectsWhenRowSetBusy(t *testing.T) {
	sess, _ := newTestSession(ProtocolVersion2)
	sess.state = stateReady
	sess.rowsBusy = true

	_, err := sess.Query("SELECT 1", Quorum, nil)
	require.Equal(t, ErrRowSetBusy, err)
}

func TestSession_GuardRequest_RejectsAfterClose(t *testing.T) {
	sess, _ := newTestSession(ProtocolVersion2)
	sess.state = stateClosed

	_, err := sess.Query("SELECT 1", Quorum, nil)
	require.Equal(t, ErrSessionClosed, err)
}

func TestSession_GuardRequest_RejectsInEventMode(t *testing.T) {
	sess, _ := newTestSession(ProtocolVersion2)
	sess.state = stateReady
	sess.eventMode = true

	_, err := sess.Query("SELECT 1", Quorum, nil)
	require.Equal(t, ErrEventSession, err)
}

func TestSession_UseKeyspace_SkipsWhenUnchanged(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.state = stateReady
	sess.usedKeyspace = "myks"

	err := sess.UseKeyspace("myks")
	require.NoError(t, err)
	require.Empty(t, stream.writeBuf)
}

func TestSession_UseKeyspace_RejectsInvalidIdentifier(t *testing.T) {
	sess, _ := newTestSession(ProtocolVersion2)
	sess.state = stateReady

	err := sess.UseKeyspace("bad; drop table")
	require.Error(t, err)
}

func TestSession_Close_DrainsActiveRowsBeforeClosing(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.state = stateReady
	sess.rowsBusy = true
	sess.activeRows = newDecoder([]byte{0x01, 0x02, 0x03})

	err := sess.Close()
	require.NoError(t, err)
	require.False(t, sess.rowsBusy)
	require.Nil(t, sess.activeRows)
	require.True(t, stream.closed)

	// Idempotent.
	require.NoError(t, sess.Close())
}

func TestSession_Close_IsIdempotent(t *testing.T) {
	sess, stream := newTestSession(ProtocolVersion2)
	sess.state = stateReady
	require.NoError(t, sess.Close())
	require.True(t, stream.closed)
	require.NoError(t, sess.Close())
}
