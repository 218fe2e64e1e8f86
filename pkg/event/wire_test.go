package event_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/event/protoserde"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	serde := protoserde.RecordSerde{}

	cases := []event.Event[protoserde.Record]{
		event.NewElement(protoserde.Record{Key: 7, Value: 3.5}, 100, true),
		event.NewElement(protoserde.Record{Key: 7}, 0, false),
		event.NewWatermark[protoserde.Record](42),
		event.NewEpoch[protoserde.Record](9),
		event.NewEnd[protoserde.Record](),
	}

	for _, in := range cases {
		b, err := event.EncodeBytes(in, serde)
		require.NoError(t, err)

		out, err := event.DecodeBytes(b, serde)
		require.NoError(t, err)

		require.Equal(t, in.Kind, out.Kind)
		switch in.Kind {
		case event.KindElement:
			require.Equal(t, in.Payload, out.Payload)
			require.Equal(t, in.HasTimestamp, out.HasTimestamp)
			if in.HasTimestamp {
				require.Equal(t, in.Timestamp, out.Timestamp)
			}
		case event.KindWatermark:
			require.Equal(t, in.WatermarkTime, out.WatermarkTime)
		case event.KindEpoch:
			require.Equal(t, in.EpochID, out.EpochID)
		}
	}
}

func TestDecodeTruncatedStreamErrors(t *testing.T) {
	_, err := event.DecodeBytes[protoserde.Record](nil, protoserde.RecordSerde{})
	require.Error(t, err)
}
