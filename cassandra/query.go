package cassandra

import (
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// query flag bits for the v2 QUERY/EXECUTE parameters block (spec.md
// §4.F). These are the documented bitmask positions, not the "Java enum
// ordinal" values the source's own comments flagged as suspect
// (spec.md §9) — SPEC_FULL.md §9 resolves that open question this way.
const (
	queryFlagValues            byte = 0x01
	queryFlagPageSize          byte = 0x04
	queryFlagPagingState       byte = 0x08
	queryFlagSerialConsistency byte = 0x10
)

// QueryParams carries the v2 query-parameters tail (spec.md §4.F). All
// fields are optional; a zero value sends none of the optional tails.
type QueryParams struct {
	Values            []Value
	PageSize          int32
	PagingState       []byte
	SerialConsistency Consistency
}

// PreparedStatement is the value-copyable handle returned by Prepare. Id
// is opaque bytes scoped to the node that prepared it; it is not portable
// across nodes (spec.md §3). It becomes stale when the server raises
// Unprepared, at which point the caller must Prepare again.
type PreparedStatement struct {
	ID             []byte
	BindMetadata   MetaData
	ResultMetadata MetaData
}

// Query sends a QUERY request (spec.md §4.F). params may be nil on
// protocol v1 (bind values are not supported in v1's QUERY body) or to
// run an unparameterized v2 query.
func (s *Session) Query(cql string, consistency Consistency, params *QueryParams) (*Result, error) {
	if err := s.guardRequest(); err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	e := newEncoder()
	e.writeLongString(cql)
	e.writeConsistency(consistency)
	if s.protocol == ProtocolVersion2 {
		if err := writeQueryParamsTail(e, params); err != nil {
			return nil, err
		}
	}

	return s.roundTrip(OpQuery, e.bytes(), "QUERY")
}

// Prepare sends a PREPARE request and returns the resulting handle
// (spec.md §3/§4.F).
func (s *Session) Prepare(cql string) (*PreparedStatement, error) {
	if err := s.guardRequest(); err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	e := newEncoder()
	e.writeLongString(cql)

	result, err := s.roundTrip(OpPrepare, e.bytes(), "PREPARE")
	if err != nil {
		return nil, err
	}
	if result.Kind != ResultPrepared {
		err := errors.Errorf("cql: PREPARE returned unexpected result kind %d", result.Kind)
		s.fail(err)
		return nil, err
	}
	return &PreparedStatement{
		ID:             result.Prepared.ID,
		BindMetadata:   result.Prepared.BindMetadata,
		ResultMetadata: result.Prepared.ResultMetadata,
	}, nil
}

// Execute binds args and runs a prepared statement (spec.md §3/§4.F). A
// server ERROR{Unprepared} for stmt.ID surfaces as *ProtocolError with
// Code == ErrCodeUnprepared; the caller should Prepare again.
func (s *Session) Execute(stmt *PreparedStatement, args []Value, consistency Consistency) (*Result, error) {
	if err := s.guardRequest(); err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	e := newEncoder()
	e.writeShortBytes(stmt.ID)

	if s.protocol == ProtocolVersion1 {
		e.writeShort(uint16(len(args)))
		for _, v := range args {
			raw, err := encodeValue(v)
			if err != nil {
				return nil, err
			}
			e.writeBytes(raw)
		}
		e.writeConsistency(consistency)
	} else {
		e.writeConsistency(consistency)
		if err := writeQueryParamsTail(e, &QueryParams{Values: args}); err != nil {
			return nil, err
		}
	}

	return s.roundTrip(OpExecute, e.bytes(), "EXECUTE")
}

// Options requests the server's supported startup options (spec.md §4.F).
func (s *Session) Options() (map[string][]string, error) {
	if err := s.guardRequest(); err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	streamID := s.allocStreamID()
	start := time.Now()
	if err := writeFrame(s.stream, s.protocol, s.frameFlags(), streamID, OpOptions, nil, s.compressor); err != nil {
		s.fail(err)
		return nil, err
	}
	frame, err := readFrame(s.stream, s.compressor)
	s.observe("OPTIONS", time.Since(start), err)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if frame.Header.Opcode != OpSupported {
		return nil, s.unexpectedOrError(frame, "OPTIONS")
	}
	d := newDecoder(frame.Body)
	supported, err := d.readStringMultiMap()
	if err != nil {
		s.fail(err)
		return nil, err
	}
	return supported, nil
}

// validEventNames are the three event kinds spec.md §4.F's REGISTER body
// accepts.
var validEventNames = map[string]bool{
	"TOPOLOGY_CHANGE": true,
	"STATUS_CHANGE":   true,
	"SCHEMA_CHANGE":   true,
}

// roundTrip assembles the 8-byte header via the caller-filled opcode and
// body, writes it, reads the response, and validates/dispatches it
// (spec.md §4.F): RESULT is decoded via parseResultBody; ERROR is decoded
// via parseErrorFrame and returned as an error; READY in answer to
// REGISTER is returned as a Void result; anything else is a protocol
// violation.
func (s *Session) roundTrip(opcode Opcode, body []byte, label string) (*Result, error) {
	streamID := s.allocStreamID()
	start := time.Now()

	if err := writeFrame(s.stream, s.protocol, s.frameFlags(), streamID, opcode, body, s.compressor); err != nil {
		s.fail(err)
		s.observe(label, time.Since(start), err)
		return nil, err
	}

	frame, err := readFrame(s.stream, s.compressor)
	if err != nil {
		s.fail(err)
		s.observe(label, time.Since(start), err)
		return nil, err
	}

	if opcode == OpRegister && frame.Header.Opcode == OpReady {
		s.observe(label, time.Since(start), nil)
		return &Result{Kind: ResultVoid}, nil
	}

	switch frame.Header.Opcode {
	case OpResult:
		d := newDecoder(frame.Body)
		result, rows, err := parseResultBody(d, s.protocol)
		if err != nil {
			s.fail(err)
			s.observe(label, time.Since(start), err)
			return nil, err
		}
		if rows != nil {
			rs := &RowSet{session: s, meta: rows.meta, total: rows.rowCount}
			s.rowsBusy = true
			s.activeRows = d
			result.Rows = rs
			if rows.rowCount == 0 {
				rs.release()
			}
		}
		s.observe(label, time.Since(start), nil)
		level.Debug(s.logger).Log("msg", "request completed", "opcode", label, "stream", streamID)
		return result, nil

	case OpError:
		pe, perr := parseErrorFrame(frame.Body)
		if perr != nil {
			s.fail(perr)
			s.observe(label, time.Since(start), perr)
			return nil, perr
		}
		s.observe(label, time.Since(start), pe)
		level.Debug(s.logger).Log("msg", "request failed", "opcode", label, "stream", streamID, "err", pe)
		return nil, pe

	default:
		err := errors.Errorf("cql: unexpected opcode %s in response to %s", frame.Header.Opcode, label)
		s.fail(err)
		s.observe(label, time.Since(start), err)
		return nil, err
	}
}

func (s *Session) observe(opcode string, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	switch err.(type) {
	case nil:
	case *ProtocolError:
		outcome = "server-error"
	default:
		outcome = "wire-error"
	}
	s.metrics.observe(opcode, outcome, elapsed.Seconds())
}

// writeQueryParamsTail encodes the v2 query-parameters block: <flags:byte>
// then optional tails for bind values / page size / paging state / serial
// consistency, in that order (spec.md §4.F).
func writeQueryParamsTail(e *encoder, params *QueryParams) error {
	if params == nil {
		e.writeByte(0)
		return nil
	}

	var flags byte
	if len(params.Values) > 0 {
		flags |= queryFlagValues
	}
	if params.PageSize > 0 {
		flags |= queryFlagPageSize
	}
	if params.PagingState != nil {
		flags |= queryFlagPagingState
	}
	if params.SerialConsistency != 0 {
		if !params.SerialConsistency.IsSerial() {
			return errors.Errorf("cql: serial consistency must be SERIAL or LOCAL_SERIAL, got %s", params.SerialConsistency)
		}
		flags |= queryFlagSerialConsistency
	}
	e.writeByte(flags)

	if flags&queryFlagValues != 0 {
		e.writeShort(uint16(len(params.Values)))
		for _, v := range params.Values {
			raw, err := encodeValue(v)
			if err != nil {
				return err
			}
			e.writeBytes(raw)
		}
	}
	if flags&queryFlagPageSize != 0 {
		e.writeInt(params.PageSize)
	}
	if flags&queryFlagPagingState != 0 {
		e.writeBytes(params.PagingState)
	}
	if flags&queryFlagSerialConsistency != 0 {
		e.writeConsistency(params.SerialConsistency)
	}
	return nil
}
