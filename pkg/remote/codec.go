package remote

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// rawCodecName is the name rawCodec registers under. The codec itself
// is forced on both ends of the connection (grpc.ForceCodec on the
// client, grpc.ForceServerCodec on the server) so gRPC's framing
// carries our already-serialized envelope bytes verbatim, without
// requiring a proto.Message type.
const rawCodecName = "arcflow-raw"

// rawCodec implements encoding.Codec over plain []byte values: Marshal
// and Unmarshal are both identity operations. This lets the Remote
// transport reuse gRPC's connection management, flow control and TLS
// without generating a .proto schema for the envelope.
type rawCodec struct{}

func (rawCodec) Name() string { return rawCodecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("remote: rawCodec.Marshal: unsupported type %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("remote: rawCodec.Unmarshal: unsupported type %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func init() {
	encoding.RegisterCodec(rawCodec{})
}
