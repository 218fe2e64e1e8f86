package event

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cuemby/arcflow/pkg/errs"
)

// Serde is the pluggable payload codec referenced by spec section 6.
// The envelope framing below is fixed; T's own encoding is not —
// protoserde ships a protobuf-wire-format implementation.
type Serde[T any] interface {
	EncodePayload(v T) ([]byte, error)
	DecodePayload(b []byte) (T, error)
}

// Encode writes the 1-byte-tag envelope described in spec section 6:
//
//	tag(1) | [timestamp_present(1) | timestamp(8)]? | [epoch_id(8)]? | [len(4) payload]?
//
// Only Element carries a payload; only Element and Epoch carry the
// optional/required integer fields shown above.
func Encode[T any](w io.Writer, e Event[T], serde Serde[T]) error {
	if err := binary.Write(w, binary.BigEndian, e.Kind); err != nil {
		return errs.Wrap(errs.SerializationError, "event.Encode", err)
	}

	switch e.Kind {
	case KindElement:
		present := byte(0)
		if e.HasTimestamp {
			present = 1
		}
		if err := binary.Write(w, binary.BigEndian, present); err != nil {
			return errs.Wrap(errs.SerializationError, "event.Encode", err)
		}
		if e.HasTimestamp {
			if err := binary.Write(w, binary.BigEndian, e.Timestamp); err != nil {
				return errs.Wrap(errs.SerializationError, "event.Encode", err)
			}
		}
		payload, err := serde.EncodePayload(e.Payload)
		if err != nil {
			return errs.Wrap(errs.SerializationError, "event.Encode", err)
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(payload))); err != nil {
			return errs.Wrap(errs.SerializationError, "event.Encode", err)
		}
		if _, err := w.Write(payload); err != nil {
			return errs.Wrap(errs.SerializationError, "event.Encode", err)
		}
	case KindWatermark:
		if err := binary.Write(w, binary.BigEndian, e.WatermarkTime); err != nil {
			return errs.Wrap(errs.SerializationError, "event.Encode", err)
		}
	case KindEpoch:
		if err := binary.Write(w, binary.BigEndian, e.EpochID); err != nil {
			return errs.Wrap(errs.SerializationError, "event.Encode", err)
		}
	case KindEnd:
		// No payload.
	default:
		return errs.New(errs.SerializationError, "event.Encode")
	}
	return nil
}

// Decode reads one envelope previously written by Encode.
func Decode[T any](r io.Reader, serde Serde[T]) (Event[T], error) {
	var kind Kind
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
	}

	switch kind {
	case KindElement:
		var present byte
		if err := binary.Read(r, binary.BigEndian, &present); err != nil {
			return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
		}
		var ts uint64
		if present == 1 {
			if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
				return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
			}
		}
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
		}
		payload, err := serde.DecodePayload(buf)
		if err != nil {
			return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
		}
		return NewElement(payload, ts, present == 1), nil
	case KindWatermark:
		var ts uint64
		if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
			return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
		}
		return NewWatermark[T](ts), nil
	case KindEpoch:
		var id uint64
		if err := binary.Read(r, binary.BigEndian, &id); err != nil {
			return Event[T]{}, errs.Wrap(errs.SerializationError, "event.Decode", err)
		}
		return NewEpoch[T](id), nil
	case KindEnd:
		return NewEnd[T](), nil
	default:
		return Event[T]{}, errs.New(errs.SerializationError, "event.Decode")
	}
}

// EncodeBytes is a convenience wrapper around Encode for callers (such
// as the Remote channel) that need a single []byte per event.
func EncodeBytes[T any](e Event[T], serde Serde[T]) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, e, serde); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBytes is the inverse of EncodeBytes.
func DecodeBytes[T any](b []byte, serde Serde[T]) (Event[T], error) {
	return Decode(bytes.NewReader(b), serde)
}
