/*
Package remote implements the Remote channel.RemoteSender transport of
spec section 4.1: a gRPC connection per downstream pipeline stage,
carrying already wire-encoded event.Event bytes to a node input
identified by target id. The gRPC method itself is hand-declared rather
than protoc-generated, in keeping with protoserde's use of
google.golang.org/protobuf/encoding/protowire for the wire bytes
instead of a compiled .proto schema.
*/
package remote

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cuemby/arcflow/pkg/errs"
)

const (
	fieldTargetID protowire.Number = 1
	fieldPayload  protowire.Number = 2
)

// encodeEnvelope frames a target node id alongside an already-encoded
// event.Event payload (produced by event.EncodeBytes) for one gRPC call.
func encodeEnvelope(targetID string, payload []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTargetID, protowire.BytesType)
	b = protowire.AppendString(b, targetID)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b
}

// decodeEnvelope is the inverse of encodeEnvelope.
func decodeEnvelope(b []byte) (targetID string, payload []byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, errs.New(errs.SerializationError, "remote.decodeEnvelope")
		}
		b = b[n:]
		if typ != protowire.BytesType {
			return "", nil, errs.New(errs.SerializationError, "remote.decodeEnvelope")
		}
		val, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return "", nil, errs.New(errs.SerializationError, "remote.decodeEnvelope")
		}
		b = b[n:]
		switch num {
		case fieldTargetID:
			targetID = string(val)
		case fieldPayload:
			payload = append([]byte(nil), val...)
		}
	}
	return targetID, payload, nil
}
