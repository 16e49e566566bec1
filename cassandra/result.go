package cassandra

import (
	"github.com/pkg/errors"
)

// ResultKind selects one of the five RESULT body shapes (spec.md §4.G).
type ResultKind int32

const (
	ResultVoid         ResultKind = 0x0001
	ResultRows         ResultKind = 0x0002
	ResultSetKeyspace  ResultKind = 0x0003
	ResultPrepared     ResultKind = 0x0004
	ResultSchemaChange ResultKind = 0x0005
)

// SchemaChangeKind is one of the three change verbs a SchemaChange result
// carries (spec.md §4.G).
type SchemaChangeKind string

const (
	SchemaCreated SchemaChangeKind = "CREATED"
	SchemaUpdated SchemaChangeKind = "UPDATED"
	SchemaDropped SchemaChangeKind = "DROPPED"
)

// SchemaChange is the parsed body of a RESULT kind=SchemaChange.
type SchemaChange struct {
	Change   SchemaChangeKind
	Keyspace string
	Table    string // may be empty
}

// PreparedResult is the parsed body of a RESULT kind=Prepared: the opaque
// statement id plus bind metadata, and (v2 only) result metadata
// (spec.md §3 PreparedStatement, §4.G).
type PreparedResult struct {
	ID             []byte
	BindMetadata   MetaData
	ResultMetadata MetaData // v2 only; zero value on v1
}

// Result is the outcome of a successful (non-ERROR) request. At most one
// field beyond Kind is meaningful (none for a Void result).
type Result struct {
	Kind ResultKind

	SetKeyspace  string
	Prepared     *PreparedResult
	SchemaChange *SchemaChange

	// Rows is present when Kind == ResultRows. Use the RowSet's Next to
	// drain it; see §4.G / §5 for the session-locking contract.
	Rows *RowSet
}

// RowSet is a lazy, session-locking iterator over a Rows result's row
// payloads (spec.md §3, §4.G, §9). While any row remains undrained, the
// owning Session is reserved: no other request may be issued on it. The
// iterator locks via the Session's internal busy flag, set on creation
// and cleared when Close/exhaustion happens, modeling spec.md §9's
// "explicit token" guidance for implementations without lifetime
// tracking.
type RowSet struct {
	session  *Session
	meta     MetaData
	total    int32
	consumed int32
	done     bool
}

// ErrExhausted is returned by RowSet.Next once every row has been
// consumed (spec.md §8 property 3).
var ErrExhausted = errors.New("cql: row set exhausted")

// ColumnCount is the number of columns each row carries.
func (rs *RowSet) ColumnCount() int {
	return len(rs.meta.Columns)
}

// Columns describes the row shape.
func (rs *RowSet) Columns() []ColumnSpec {
	return rs.meta.Columns
}

// RowCount is the total number of rows the server declared.
func (rs *RowSet) RowCount() int32 {
	return rs.total
}

// Next decodes and returns the next row as one Value per column, in
// column order. It returns ErrExhausted once RowCount rows have been
// consumed (spec.md §8 property 3); any other error (a short read or a
// column payload that does not fit its type) closes the session.
func (rs *RowSet) Next() ([]Value, error) {
	if rs.done || rs.consumed >= rs.total {
		rs.release()
		return nil, ErrExhausted
	}

	row := make([]Value, len(rs.meta.Columns))
	for i, col := range rs.meta.Columns {
		raw, err := rs.session.readRowColumn()
		if err != nil {
			rs.release()
			rs.session.fail(err)
			return nil, err
		}
		val, err := decodeValue(raw, col.Type)
		if err != nil {
			rs.release()
			rs.session.fail(err)
			return nil, err
		}
		row[i] = val
	}
	rs.consumed++
	if rs.consumed >= rs.total {
		rs.release()
	}
	return row, nil
}

// Close discards any remaining undrained rows and releases the Session.
// It is safe to call after exhaustion or more than once.
func (rs *RowSet) Close() error {
	if rs.done {
		return nil
	}
	for rs.consumed < rs.total {
		for i := 0; i < len(rs.meta.Columns); i++ {
			if _, err := rs.session.readRowColumn(); err != nil {
				rs.release()
				rs.session.fail(err)
				return err
			}
		}
		rs.consumed++
	}
	rs.release()
	return nil
}

func (rs *RowSet) release() {
	if rs.done {
		return
	}
	rs.done = true
	rs.session.releaseRowSet()
}

// rowsHeader is the parsed Rows metadata plus declared row count, handed
// back separately from Result so Session.roundTrip can wire up a RowSet
// that reads the remaining row payloads lazily off the wire.
type rowsHeader struct {
	meta     MetaData
	rowCount int32
}

// parseResultBody dispatches on the leading [int] kind (spec.md §4.G).
// For ResultRows, the returned *rowsHeader describes the rows that
// follow in the frame body but have not been decoded yet; every other
// kind is fully self-contained in the returned Result.
func parseResultBody(d *decoder, version ProtocolVersion) (*Result, *rowsHeader, error) {
	kindInt, err := d.readInt()
	if err != nil {
		return nil, nil, err
	}
	kind := ResultKind(kindInt)

	switch kind {
	case ResultVoid:
		return &Result{Kind: ResultVoid}, nil, nil

	case ResultRows:
		meta, err := readMetaData(d, version)
		if err != nil {
			return nil, nil, err
		}
		rowCount, err := d.readInt()
		if err != nil {
			return nil, nil, err
		}
		return &Result{Kind: ResultRows}, &rowsHeader{meta: meta, rowCount: rowCount}, nil

	case ResultSetKeyspace:
		ks, err := d.readString()
		if err != nil {
			return nil, nil, err
		}
		return &Result{Kind: ResultSetKeyspace, SetKeyspace: ks}, nil, nil

	case ResultPrepared:
		id, err := d.readShortBytes()
		if err != nil {
			return nil, nil, err
		}
		bindMeta, err := readMetaData(d, version)
		if err != nil {
			return nil, nil, err
		}
		var resultMeta MetaData
		if version == ProtocolVersion2 {
			resultMeta, err = readMetaData(d, version)
			if err != nil {
				return nil, nil, err
			}
		}
		return &Result{Kind: ResultPrepared, Prepared: &PreparedResult{
			ID:             id,
			BindMetadata:   bindMeta,
			ResultMetadata: resultMeta,
		}}, nil, nil

	case ResultSchemaChange:
		change, err := d.readString()
		if err != nil {
			return nil, nil, err
		}
		ks, err := d.readString()
		if err != nil {
			return nil, nil, err
		}
		table, err := d.readString()
		if err != nil {
			return nil, nil, err
		}
		return &Result{Kind: ResultSchemaChange, SchemaChange: &SchemaChange{
			Change:   SchemaChangeKind(change),
			Keyspace: ks,
			Table:    table,
		}}, nil, nil

	default:
		return nil, nil, errors.Errorf("cql: unknown RESULT kind 0x%08x", kindInt)
	}
}
