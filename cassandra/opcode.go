package cassandra

// ProtocolVersion selects the opcode dialect and body layouts per
// spec.md §6. Only versions 1 and 2 of the CQL binary protocol are
// supported by this core.
type ProtocolVersion byte

const (
	ProtocolVersion1 ProtocolVersion = 0x01
	ProtocolVersion2 ProtocolVersion = 0x02

	directionMask = 0x80
	versionMask   = 0x7F

	// MaxFrameSize is the protocol's declared body length ceiling
	// (spec.md §3: "length ... ≤ 256 MiB").
	MaxFrameSize = 256 * 1024 * 1024
)

// requestByte/responseByte set or check the header's
// direction bit against the negotiated protocol version.
func (v ProtocolVersion) requestByte() byte  { return byte(v) }
func (v ProtocolVersion) responseByte() byte { return byte(v) | directionMask }

func versionOf(b byte) ProtocolVersion { return ProtocolVersion(b & versionMask) }
func isResponseByte(b byte) bool       { return b&directionMask != 0 }

func (v ProtocolVersion) String() string {
	switch v {
	case ProtocolVersion1:
		return "v1"
	case ProtocolVersion2:
		return "v2"
	default:
		return "unknown"
	}
}

// Opcode identifies a frame's message type. Numeric values are shared
// between v1 and v2 except that v1 has CREDENTIALS at 0x04 where v2 has
// nothing, and v2 adds BATCH/AUTH_CHALLENGE/AUTH_RESPONSE/AUTH_SUCCESS at
// 0x0D-0x10 (spec.md §6).
type Opcode byte

const (
	OpError        Opcode = 0x00
	OpStartup      Opcode = 0x01
	OpReady        Opcode = 0x02
	OpAuthenticate Opcode = 0x03
	OpCredentials  Opcode = 0x04 // v1 only
	OpOptions      Opcode = 0x05
	OpSupported    Opcode = 0x06
	OpQuery        Opcode = 0x07
	OpResult       Opcode = 0x08
	OpPrepare      Opcode = 0x09
	OpExecute      Opcode = 0x0A
	OpRegister     Opcode = 0x0B
	OpEvent        Opcode = 0x0C
	OpBatch        Opcode = 0x0D // v2 only
	OpAuthChallenge Opcode = 0x0E // v2 only
	OpAuthResponse  Opcode = 0x0F // v2 only
	OpAuthSuccess   Opcode = 0x10 // v2 only
)

func (o Opcode) String() string {
	switch o {
	case OpError:
		return "ERROR"
	case OpStartup:
		return "STARTUP"
	case OpReady:
		return "READY"
	case OpAuthenticate:
		return "AUTHENTICATE"
	case OpCredentials:
		return "CREDENTIALS"
	case OpOptions:
		return "OPTIONS"
	case OpSupported:
		return "SUPPORTED"
	case OpQuery:
		return "QUERY"
	case OpResult:
		return "RESULT"
	case OpPrepare:
		return "PREPARE"
	case OpExecute:
		return "EXECUTE"
	case OpRegister:
		return "REGISTER"
	case OpEvent:
		return "EVENT"
	case OpBatch:
		return "BATCH"
	case OpAuthChallenge:
		return "AUTH_CHALLENGE"
	case OpAuthResponse:
		return "AUTH_RESPONSE"
	case OpAuthSuccess:
		return "AUTH_SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// validForDialect reports whether opcode o is legal on protocol version v,
// per the v1/v2 opcode table in spec.md §6.
func validForDialect(o Opcode, v ProtocolVersion) bool {
	switch o {
	case OpCredentials:
		return v == ProtocolVersion1
	case OpBatch, OpAuthChallenge, OpAuthResponse, OpAuthSuccess:
		return v == ProtocolVersion2
	default:
		return true
	}
}
