package cassandra

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// sessionState is the Session lifecycle (spec.md §3/§4.E).
type sessionState int

const (
	stateFresh sessionState = iota
	stateNegotiating
	stateAuthenticating
	stateReady
	stateClosed
)

// Authenticator is the minimal plug-in point for the AUTH_RESPONSE/
// AUTH_CHALLENGE (v2) or CREDENTIALS (v1) exchange. Credential sourcing
// itself is out of scope (spec.md §1); this only names the shape the
// Session State Machine calls into.
type Authenticator interface {
	// Challenge answers one round of the server's authentication
	// handshake; request is nil for the very first v1 CREDENTIALS call.
	Challenge(request []byte) (response []byte, err error)
}

// Session is a single, synchronous, single-stream connection to one node
// (spec.md §3, §5). It is not safe for concurrent use; pooling and
// cross-goroutine sharing are the caller's responsibility.
type Session struct {
	stream     ByteStream
	protocol   ProtocolVersion
	compressor BodyCompressor
	tracing    bool
	auth       Authenticator
	logger     log.Logger
	metrics    *requestMetrics

	state        sessionState
	usedKeyspace string
	nextStreamID int8

	// rowsBusy/activeRows implement the RowSet session-lock contract
	// (spec.md §3/§4.G/§9): while a RowSet has undrained rows, no new
	// request may be dispatched on this Session.
	rowsBusy   bool
	activeRows *decoder

	// eventMode is set once Register succeeds; from then on the Session
	// is permanently an event-only listener (SPEC_FULL.md §4.M).
	eventMode bool
}

// ErrSessionClosed is returned by any request issued after Close or after
// a fatal error closed the Session, except on a Session in
// event-listening mode, which answers with ErrEventSession instead.
var ErrSessionClosed = errors.New("cql: session is closed")

// ErrRowSetBusy is returned when a request is issued while a RowSet from
// a prior query still has undrained rows.
var ErrRowSetBusy = errors.New("cql: previous row set is still active")

// ErrEventSession is returned when a request other than the initial
// Register is issued on a Session that has entered event-listening mode.
var ErrEventSession = errors.New("cql: session is in event-listening mode")

func (s *Session) guardRequest() error {
	if s.eventMode {
		return ErrEventSession
	}
	if s.state == stateClosed {
		return ErrSessionClosed
	}
	if s.rowsBusy {
		return ErrRowSetBusy
	}
	return nil
}

func (s *Session) fail(err error) {
	level.Error(s.logger).Log("msg", "session failed, closing", "err", err)
	s.state = stateClosed
	_ = s.stream.Close()
}

// ensureStarted drives Fresh -> Negotiating -> [Authenticating] -> Ready,
// per spec.md §4.E. It is a no-op once the Session is Ready.
func (s *Session) ensureStarted() error {
	if s.state == stateReady {
		return nil
	}
	if s.state == stateClosed {
		return ErrSessionClosed
	}
	return s.startup()
}

func (s *Session) startup() error {
	s.state = stateNegotiating
	level.Info(s.logger).Log("msg", "starting up", "protocol", s.protocol)

	options := map[string]string{"CQL_VERSION": "3.0.0"}
	if s.compressor != nil {
		options["COMPRESSION"] = s.compressor.Name()
	}

	e := newEncoder()
	e.writeStringMap(options)

	streamID := s.allocStreamID()
	if err := writeFrame(s.stream, s.protocol, s.frameFlags(), streamID, OpStartup, e.bytes(), nil); err != nil {
		s.fail(err)
		return err
	}

	// The STARTUP frame itself is never compressed (no body has been
	// negotiated yet), but responses after negotiation succeeds may be.
	frame, err := readFrame(s.stream, nil)
	if err != nil {
		s.fail(err)
		return err
	}

	switch frame.Header.Opcode {
	case OpReady:
		s.state = stateReady
		level.Info(s.logger).Log("msg", "session ready")
		return nil
	case OpAuthenticate:
		s.state = stateAuthenticating
		level.Info(s.logger).Log("msg", "authentication required")
		return s.authenticate(frame.Body)
	case OpError:
		pe, perr := parseErrorFrame(frame.Body)
		if perr != nil {
			s.fail(perr)
			return perr
		}
		s.fail(pe)
		return pe
	default:
		err := errors.Errorf("cql: unexpected opcode %s during startup", frame.Header.Opcode)
		s.fail(err)
		return err
	}
}

func (s *Session) authenticate(authenticateBody []byte) error {
	if s.auth == nil {
		err := errors.New("cql: server requires authentication but no Authenticator configured")
		s.fail(err)
		return err
	}

	if s.protocol == ProtocolVersion1 {
		response, err := s.auth.Challenge(nil)
		if err != nil {
			s.fail(err)
			return err
		}
		e := newEncoder()
		e.writeStringMap(map[string]string{"": string(response)})
		streamID := s.allocStreamID()
		if err := writeFrame(s.stream, s.protocol, s.frameFlags(), streamID, OpCredentials, e.bytes(), s.compressor); err != nil {
			s.fail(err)
			return err
		}
		frame, err := readFrame(s.stream, s.compressor)
		if err != nil {
			s.fail(err)
			return err
		}
		if frame.Header.Opcode != OpReady {
			return s.unexpectedOrError(frame, "CREDENTIALS")
		}
		s.state = stateReady
		level.Info(s.logger).Log("msg", "session ready")
		return nil
	}

	// v2: AUTH_RESPONSE loop until AUTH_SUCCESS.
	challenge := []byte(nil)
	for {
		response, err := s.auth.Challenge(challenge)
		if err != nil {
			s.fail(err)
			return err
		}
		e := newEncoder()
		e.writeBytes(response)
		streamID := s.allocStreamID()
		if err := writeFrame(s.stream, s.protocol, s.frameFlags(), streamID, OpAuthResponse, e.bytes(), s.compressor); err != nil {
			s.fail(err)
			return err
		}
		frame, err := readFrame(s.stream, s.compressor)
		if err != nil {
			s.fail(err)
			return err
		}
		switch frame.Header.Opcode {
		case OpAuthChallenge:
			d := newDecoder(frame.Body)
			next, err := d.readBytes()
			if err != nil {
				s.fail(err)
				return err
			}
			challenge = next
			continue
		case OpAuthSuccess:
			s.state = stateReady
			level.Info(s.logger).Log("msg", "session ready")
			return nil
		default:
			return s.unexpectedOrError(frame, "AUTH_RESPONSE")
		}
	}
}

func (s *Session) unexpectedOrError(frame *Frame, during string) error {
	if frame.Header.Opcode == OpError {
		pe, err := parseErrorFrame(frame.Body)
		if err != nil {
			s.fail(err)
			return err
		}
		s.fail(pe)
		return pe
	}
	err := errors.Errorf("cql: unexpected opcode %s during %s", frame.Header.Opcode, during)
	s.fail(err)
	return err
}

// UseKeyspace issues "USE <name>" with ANY consistency iff the cached
// used keyspace differs from name (spec.md §4.E, §5). name must match
// [A-Za-z0-9_]+, validated before anything is sent (spec.md §7).
func (s *Session) UseKeyspace(name string) error {
	if err := validateIdentifier(name); err != nil {
		return err
	}
	if s.usedKeyspace == name {
		return nil
	}
	res, err := s.Query("USE "+name, Any, nil)
	if err != nil {
		return err
	}
	if res.Kind == ResultSetKeyspace {
		s.usedKeyspace = res.SetKeyspace
	} else {
		s.usedKeyspace = name
	}
	return nil
}

// UsedKeyspace returns the Session-local cached keyspace name, or "" if
// none has been set.
func (s *Session) UsedKeyspace() string {
	return s.usedKeyspace
}

// Close tears down the Session. It must consume and discard any trailing
// bytes of the current frame body before closing the stream, and is safe
// to call exactly once; subsequent calls are no-ops (spec.md §4.E).
func (s *Session) Close() error {
	if s.state == stateClosed {
		return nil
	}
	if s.rowsBusy {
		// Drain whatever is left of the live RowSet's frame body before
		// tearing down, per spec.md §4.E.
		for s.activeRows != nil && !s.activeRows.atEnd() {
			if _, err := s.activeRows.take(s.activeRows.remaining()); err != nil {
				break
			}
		}
		s.rowsBusy = false
		s.activeRows = nil
	}
	s.state = stateClosed
	level.Info(s.logger).Log("msg", "session closed")
	if s.metrics != nil {
		s.metrics.connectionClosed()
	}
	return s.stream.Close()
}

func (s *Session) allocStreamID() int8 {
	id := s.nextStreamID
	s.nextStreamID++
	if s.nextStreamID < 0 {
		s.nextStreamID = 0
	}
	return id
}

func (s *Session) frameFlags() byte {
	var flags byte
	if s.tracing {
		flags |= flagTraced
	}
	return flags
}

func (s *Session) readRowColumn() ([]byte, error) {
	if s.activeRows == nil {
		return nil, errors.New("cql: no active row set")
	}
	return s.activeRows.readBytes()
}

func (s *Session) releaseRowSet() {
	s.rowsBusy = false
	s.activeRows = nil
}

// validateIdentifier enforces spec.md §7's synchronous-failure
// identifier rule for use_keyspace/creation/identifier paths.
func validateIdentifier(name string) error {
	if name == "" {
		return errors.New("cql: invalid identifier: empty")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return errors.Errorf("cql: invalid identifier %q: must match [A-Za-z0-9_]+", name)
		}
	}
	return nil
}
