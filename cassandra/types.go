package cassandra

// ColumnType is a recursive tagged variant describing a column's native
// type, replacing the pointer-based Option union the wire format uses
// with a single owned tree (spec.md §9 design note).
type ColumnType struct {
	ID ColumnTypeID

	// CustomClass holds the class name when ID == TypeCustom.
	CustomClass string

	// Elem is the element type for List/Set.
	Elem *ColumnType
	// Key/Value are the key/value types for Map.
	Key   *ColumnType
	Value *ColumnType
}

// ColumnTypeID is the wire [option] id (spec.md §4.B).
type ColumnTypeID uint16

const (
	TypeCustom    ColumnTypeID = 0x0000
	TypeAscii     ColumnTypeID = 0x0001
	TypeBigInt    ColumnTypeID = 0x0002
	TypeBlob      ColumnTypeID = 0x0003
	TypeBoolean   ColumnTypeID = 0x0004
	TypeCounter   ColumnTypeID = 0x0005
	TypeDecimal   ColumnTypeID = 0x0006
	TypeDouble    ColumnTypeID = 0x0007
	TypeFloat     ColumnTypeID = 0x0008
	TypeInt       ColumnTypeID = 0x0009
	TypeText      ColumnTypeID = 0x000A // v1 only; aliased to VarChar on v2 wire
	TypeTimestamp ColumnTypeID = 0x000B
	TypeUuid      ColumnTypeID = 0x000C
	TypeVarChar   ColumnTypeID = 0x000D
	TypeVarInt    ColumnTypeID = 0x000E
	TypeTimeUuid  ColumnTypeID = 0x000F
	TypeInet      ColumnTypeID = 0x0010
	TypeList      ColumnTypeID = 0x0020
	TypeMap       ColumnTypeID = 0x0021
	TypeSet       ColumnTypeID = 0x0022
)

func (id ColumnTypeID) String() string {
	switch id {
	case TypeCustom:
		return "custom"
	case TypeAscii:
		return "ascii"
	case TypeBigInt:
		return "bigint"
	case TypeBlob:
		return "blob"
	case TypeBoolean:
		return "boolean"
	case TypeCounter:
		return "counter"
	case TypeDecimal:
		return "decimal"
	case TypeDouble:
		return "double"
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeText:
		return "text"
	case TypeTimestamp:
		return "timestamp"
	case TypeUuid:
		return "uuid"
	case TypeVarChar:
		return "varchar"
	case TypeVarInt:
		return "varint"
	case TypeTimeUuid:
		return "timeuuid"
	case TypeInet:
		return "inet"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	default:
		return "unknown"
	}
}

// readOption decodes [option]: [short] id + value (spec.md §4.B). The
// three collection ids recurse into one or two nested [option]s; custom
// carries a [string] class name; everything else carries no value.
//
// On protocol v1, TypeText (0x0A) is a distinct variant; on v2 it never
// appears on the wire (aliased to VarChar by the server), but a v1
// frame's Text type is still decoded to TypeText rather than silently
// remapped, preserving the distinction spec.md §3 draws between them.
func (d *decoder) readOption() (*ColumnType, error) {
	id, err := d.readShort()
	if err != nil {
		return nil, err
	}
	t := &ColumnType{ID: ColumnTypeID(id)}
	switch t.ID {
	case TypeCustom:
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		t.CustomClass = name
	case TypeList, TypeSet:
		elem, err := d.readOption()
		if err != nil {
			return nil, err
		}
		t.Elem = elem
	case TypeMap:
		key, err := d.readOption()
		if err != nil {
			return nil, err
		}
		val, err := d.readOption()
		if err != nil {
			return nil, err
		}
		t.Key = key
		t.Value = val
	}
	return t, nil
}

func (e *encoder) writeOption(t *ColumnType) {
	e.writeShort(uint16(t.ID))
	switch t.ID {
	case TypeCustom:
		e.writeString(t.CustomClass)
	case TypeList, TypeSet:
		e.writeOption(t.Elem)
	case TypeMap:
		e.writeOption(t.Key)
		e.writeOption(t.Value)
	}
}

// ColumnSpec describes one column of a result or bind metadata block.
// Keyspace/Table are empty when the enclosing MetaData carries a global
// table spec (spec.md §3).
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     *ColumnType
}

// MetaData flag bits (spec.md §4.G).
const (
	metaFlagGlobalTablesSpec uint32 = 0x0001
	metaFlagHasMorePages     uint32 = 0x0002 // v2
	metaFlagNoMetadata       uint32 = 0x0004 // v2
)

// MetaData describes the columns of a Rows result or a PreparedStatement's
// bind parameters (spec.md §3).
type MetaData struct {
	Flags       uint32
	ColumnCount int32
	PagingState []byte // v2 only, present iff metaFlagHasMorePages
	Columns     []ColumnSpec
}

// HasMorePages reports whether the server indicated additional pages are
// available beyond PagingState (v2 only).
func (m MetaData) HasMorePages() bool {
	return m.Flags&metaFlagHasMorePages != 0
}

// readMetaData parses a MetaData block per spec.md §4.G: flags, column
// count, optional v2 paging state, optional global table spec, then
// column_count column specs (each keyspace/table absent iff global).
func readMetaData(d *decoder, version ProtocolVersion) (MetaData, error) {
	var meta MetaData

	flags, err := d.readInt()
	if err != nil {
		return meta, err
	}
	meta.Flags = uint32(flags)

	count, err := d.readInt()
	if err != nil {
		return meta, err
	}
	meta.ColumnCount = count

	if version == ProtocolVersion2 && meta.Flags&metaFlagHasMorePages != 0 {
		ps, err := d.readBytes()
		if err != nil {
			return meta, err
		}
		meta.PagingState = ps
	}

	if version == ProtocolVersion2 && meta.Flags&metaFlagNoMetadata != 0 {
		return meta, nil
	}

	var globalKeyspace, globalTable string
	global := meta.Flags&metaFlagGlobalTablesSpec != 0
	if global {
		ks, err := d.readString()
		if err != nil {
			return meta, err
		}
		tbl, err := d.readString()
		if err != nil {
			return meta, err
		}
		globalKeyspace, globalTable = ks, tbl
	}

	meta.Columns = make([]ColumnSpec, count)
	for i := range meta.Columns {
		spec := ColumnSpec{Keyspace: globalKeyspace, Table: globalTable}
		if !global {
			ks, err := d.readString()
			if err != nil {
				return meta, err
			}
			tbl, err := d.readString()
			if err != nil {
				return meta, err
			}
			spec.Keyspace, spec.Table = ks, tbl
		}
		name, err := d.readString()
		if err != nil {
			return meta, err
		}
		spec.Name = name
		typ, err := d.readOption()
		if err != nil {
			return meta, err
		}
		spec.Type = typ
		meta.Columns[i] = spec
	}

	return meta, nil
}
