package cassandra

// ErrorCode is the wire [int] code carried by an ERROR frame (spec.md §7).
type ErrorCode int32

const (
	ErrCodeServer          ErrorCode = 0x0000
	ErrCodeProtocol        ErrorCode = 0x000A
	ErrCodeBadCredentials  ErrorCode = 0x0100
	ErrCodeUnavailable     ErrorCode = 0x1000
	ErrCodeOverloaded      ErrorCode = 0x1001
	ErrCodeIsBootstrapping ErrorCode = 0x1002
	ErrCodeTruncate        ErrorCode = 0x1003
	ErrCodeWriteTimeout    ErrorCode = 0x1100
	ErrCodeReadTimeout     ErrorCode = 0x1200
	ErrCodeSyntax          ErrorCode = 0x2000
	ErrCodeUnauthorized    ErrorCode = 0x2100
	ErrCodeInvalid         ErrorCode = 0x2200
	ErrCodeConfig          ErrorCode = 0x2300
	ErrCodeAlreadyExists   ErrorCode = 0x2400
	ErrCodeUnprepared      ErrorCode = 0x2500
)

// ProtocolError is a parsed ERROR frame (spec.md §7). Kind-specific
// fields are populated only for the codes that carry a tail; everything
// else leaves them at their zero value.
type ProtocolError struct {
	Code    ErrorCode
	Message string

	// Unavailable / WriteTimeout / ReadTimeout
	Consistency Consistency
	Required    int32 // Unavailable
	Alive       int32 // Unavailable
	Received    int32 // WriteTimeout / ReadTimeout
	BlockFor    int32 // WriteTimeout / ReadTimeout
	WriteType   string
	DataPresent bool

	// AlreadyExists
	Keyspace string
	Table    string

	// Unprepared
	UnknownID []byte
}

func (e *ProtocolError) Error() string {
	return "cql: " + e.codeName() + ": " + e.Message
}

func (e *ProtocolError) codeName() string {
	switch e.Code {
	case ErrCodeServer:
		return "server error"
	case ErrCodeProtocol:
		return "protocol error"
	case ErrCodeBadCredentials:
		return "bad credentials"
	case ErrCodeUnavailable:
		return "unavailable"
	case ErrCodeOverloaded:
		return "overloaded"
	case ErrCodeIsBootstrapping:
		return "is bootstrapping"
	case ErrCodeTruncate:
		return "truncate error"
	case ErrCodeWriteTimeout:
		return "write timeout"
	case ErrCodeReadTimeout:
		return "read timeout"
	case ErrCodeSyntax:
		return "syntax error"
	case ErrCodeUnauthorized:
		return "unauthorized"
	case ErrCodeInvalid:
		return "invalid"
	case ErrCodeConfig:
		return "config error"
	case ErrCodeAlreadyExists:
		return "already exists"
	case ErrCodeUnprepared:
		return "unprepared"
	default:
		return "unknown error"
	}
}

// IsUnprepared reports whether err is an Unprepared error, the hint to
// re-run PREPARE (spec.md §7).
func IsUnprepared(err error) bool {
	pe, ok := err.(*ProtocolError)
	return ok && pe.Code == ErrCodeUnprepared
}

// parseErrorFrame decodes an ERROR body: [int] code + [string] message +
// a code-specific tail (spec.md §7 table).
func parseErrorFrame(body []byte) (*ProtocolError, error) {
	d := newDecoder(body)
	code, err := d.readInt()
	if err != nil {
		return nil, err
	}
	msg, err := d.readString()
	if err != nil {
		return nil, err
	}
	pe := &ProtocolError{Code: ErrorCode(code), Message: msg}

	switch pe.Code {
	case ErrCodeUnavailable:
		if pe.Consistency, err = d.readConsistency(); err != nil {
			return nil, err
		}
		if pe.Required, err = d.readInt(); err != nil {
			return nil, err
		}
		if pe.Alive, err = d.readInt(); err != nil {
			return nil, err
		}
	case ErrCodeWriteTimeout:
		if pe.Consistency, err = d.readConsistency(); err != nil {
			return nil, err
		}
		if pe.Received, err = d.readInt(); err != nil {
			return nil, err
		}
		if pe.BlockFor, err = d.readInt(); err != nil {
			return nil, err
		}
		if pe.WriteType, err = d.readString(); err != nil {
			return nil, err
		}
	case ErrCodeReadTimeout:
		if pe.Consistency, err = d.readConsistency(); err != nil {
			return nil, err
		}
		if pe.Received, err = d.readInt(); err != nil {
			return nil, err
		}
		if pe.BlockFor, err = d.readInt(); err != nil {
			return nil, err
		}
		present, err := d.readByte()
		if err != nil {
			return nil, err
		}
		pe.DataPresent = present != 0
	case ErrCodeAlreadyExists:
		if pe.Keyspace, err = d.readString(); err != nil {
			return nil, err
		}
		if pe.Table, err = d.readString(); err != nil {
			return nil, err
		}
	case ErrCodeUnprepared:
		if pe.UnknownID, err = d.readShortBytes(); err != nil {
			return nil, err
		}
	}

	return pe, nil
}
