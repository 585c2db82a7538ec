package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// ArrowType maps a column type to its Arrow type. JSON columns travel as
// strings tagged with field metadata.
func ArrowType(t schema.Type) arrow.DataType {
	switch t {
	case schema.TypeLong:
		return arrow.PrimitiveTypes.Int64
	case schema.TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case schema.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case schema.TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema converts a schema; every field is nullable
func ArrowSchema(s *schema.Schema) *arrow.Schema {
	fields := make([]arrow.Field, s.Len())
	for i, col := range s.Columns() {
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     ArrowType(col.Type),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{"column_type"}, []string{string(col.Type)}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// ToArrow copies the committed rows into a new Arrow record. The caller owns
// the record and must Release it.
func (s *Store) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b := array.NewRecordBuilder(mem, ArrowSchema(s.schema))
	defer b.Release()

	for i, col := range s.columns {
		fb := b.Field(i)
		fb.Reserve(s.rowCount)
		for row := 0; row < s.rowCount; row++ {
			if col.IsNull(row) {
				fb.AppendNull()
				continue
			}
			switch c := col.(type) {
			case *LongColumn:
				fb.(*array.Int64Builder).Append(c.Value(row))
			case *DoubleColumn:
				fb.(*array.Float64Builder).Append(c.Value(row))
			case *BooleanColumn:
				fb.(*array.BooleanBuilder).Append(c.Value(row))
			case *TimestampColumn:
				fb.(*array.TimestampBuilder).Append(arrow.Timestamp(c.Nanos(row)))
			case *StringColumn:
				fb.(*array.StringBuilder).Append(c.Value(row))
			default:
				return nil, fmt.Errorf("unsupported column %T", col)
			}
		}
	}
	return b.NewRecord(), nil
}
