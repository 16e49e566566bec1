package cassandra

import (
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// EventKind distinguishes the three server-pushed event classes a
// registered Session can receive (spec.md §6).
type EventKind string

const (
	EventTopologyChange EventKind = "TOPOLOGY_CHANGE"
	EventStatusChange   EventKind = "STATUS_CHANGE"
	EventSchemaChange   EventKind = "SCHEMA_CHANGE"
)

// Event is one decoded server-pushed EVENT frame (stream id -1).
type Event struct {
	Kind EventKind

	// TOPOLOGY_CHANGE / STATUS_CHANGE
	Change  string
	Address string

	// SCHEMA_CHANGE
	Schema *SchemaChange
}

// Register sends REGISTER for the given event names and converts this
// Session into a permanent, event-only listener (SPEC_FULL.md §4.M). This
// resolves spec.md §9's flagged "untested" event path by giving it an
// explicit, narrow contract: once Register succeeds, ordinary
// query/execute traffic on the same Session is rejected with
// ErrEventSession, and a dedicated goroutine exclusively reads
// stream-id -1 EVENT frames off the Session's byte stream, decoding each
// into an Event pushed to the returned channel. The channel is closed
// when the Session is closed or the read loop hits a fatal wire error.
func (s *Session) Register(events []string) (<-chan Event, error) {
	for _, name := range events {
		if !validEventNames[name] {
			return nil, errors.Errorf("cql: unknown event name %q", name)
		}
	}

	if err := s.guardRequest(); err != nil {
		return nil, err
	}
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}

	e := newEncoder()
	e.writeStringList(events)

	result, err := s.roundTrip(OpRegister, e.bytes(), "REGISTER")
	if err != nil {
		return nil, err
	}
	if result.Kind != ResultVoid {
		// REGISTER's success response is READY on early servers and a
		// bodyless RESULT on others; roundTrip maps READY to a Void result
		// and rejects anything else that isn't RESULT/ERROR, so reaching
		// here with a non-Void kind is itself unexpected.
		return nil, errors.Errorf("cql: unexpected RESULT kind %d for REGISTER", result.Kind)
	}

	s.eventMode = true
	ch := make(chan Event, 16)
	go s.eventLoop(ch)
	return ch, nil
}

func (s *Session) eventLoop(ch chan<- Event) {
	defer close(ch)
	for {
		frame, err := readFrame(s.stream, s.compressor)
		if err != nil {
			if s.state != stateClosed {
				level.Error(s.logger).Log("msg", "event read loop failed", "err", err)
				s.fail(err)
			}
			return
		}
		if frame.Header.StreamID != -1 || frame.Header.Opcode != OpEvent {
			level.Error(s.logger).Log("msg", "unexpected frame on event session", "opcode", frame.Header.Opcode, "stream", frame.Header.StreamID)
			continue
		}
		evt, err := parseEventFrame(frame.Body)
		if err != nil {
			level.Error(s.logger).Log("msg", "failed to parse event frame", "err", err)
			var wfe *WireFormatError
			if errors.As(err, &wfe) {
				s.fail(err)
				return
			}
			continue
		}
		ch <- *evt
	}
}

func parseEventFrame(body []byte) (*Event, error) {
	d := newDecoder(body)
	kind, err := d.readString()
	if err != nil {
		return nil, err
	}
	switch EventKind(kind) {
	case EventTopologyChange, EventStatusChange:
		change, err := d.readString()
		if err != nil {
			return nil, err
		}
		addr, _, err := d.readInetWithPort()
		if err != nil {
			return nil, err
		}
		return &Event{Kind: EventKind(kind), Change: change, Address: addr}, nil
	case EventSchemaChange:
		change, err := d.readString()
		if err != nil {
			return nil, err
		}
		ks, err := d.readString()
		if err != nil {
			return nil, err
		}
		table, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &Event{Kind: EventSchemaChange, Schema: &SchemaChange{
			Change:   SchemaChangeKind(change),
			Keyspace: ks,
			Table:    table,
		}}, nil
	default:
		return nil, errors.Errorf("cql: unknown event kind %q", kind)
	}
}
