/*
Package protoserde is the reference event.Serde implementation named in
spec section 6 ("protobuf is the reference"). It encodes Record values
using google.golang.org/protobuf/encoding/protowire's tag/varint
primitives directly rather than a protoc-generated message, since this
environment cannot run protoc; the bytes on the wire are still a
genuine protobuf encoding (two varint-tagged fields: a fixed64 key and
a double value) that any protobuf implementation could decode with a
matching .proto schema.
*/
package protoserde

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cuemby/arcflow/pkg/errs"
)

const (
	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2
)

// Record is the demo payload type carried through cmd/arconode's
// sample pipeline and used by the event and remote tests.
type Record struct {
	Key   uint64
	Value float64
}

// RecordSerde implements event.Serde[Record].
type RecordSerde struct{}

func (RecordSerde) EncodePayload(v Record) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldKey, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, v.Key)
	b = protowire.AppendTag(b, fieldValue, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64FromFloat64(v.Value))
	return b, nil
}

func (RecordSerde) DecodePayload(b []byte) (Record, error) {
	var rec Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, errs.Wrap(errs.SerializationError, "protoserde.DecodePayload", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.Fixed64Type {
			return Record{}, errs.New(errs.SerializationError, "protoserde.DecodePayload")
		}
		val, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return Record{}, errs.Wrap(errs.SerializationError, "protoserde.DecodePayload", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldKey:
			rec.Key = val
		case fieldValue:
			rec.Value = float64FromUint64(val)
		}
	}
	return rec, nil
}

// uint64FromFloat64 / float64FromUint64 round-trip a float64 through
// its IEEE-754 bit pattern, the representation protowire's Fixed64
// helpers expect for a `double` field.
func uint64FromFloat64(f float64) uint64 { return math.Float64bits(f) }
func float64FromUint64(u uint64) float64 { return math.Float64frombits(u) }
