package remote_test

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/event/protoserde"
	"github.com/cuemby/arcflow/pkg/remote"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	payload, err := event.EncodeBytes(event.NewElement(protoserde.Record{Key: 1, Value: 2.5}, 100, true), protoserde.RecordSerde{})
	require.NoError(t, err)

	reg := remote.NewRegistry()
	ch := make(chan event.Event[protoserde.Record], 1)
	remote.Register(reg, "node-9", protoserde.RecordSerde{}, ch)

	server := remote.NewServer(reg, zerolog.Nop())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(lis) }()
	defer server.Stop()

	client, err := remote.Dial(lis.Addr().String(), "node-9", protoserde.RecordSerde{}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	decoded, err := event.DecodeBytes(payload, protoserde.RecordSerde{})
	require.NoError(t, err)
	require.NoError(t, client.Send(decoded))

	select {
	case got := <-ch:
		require.Equal(t, event.KindElement, got.Kind)
		require.Equal(t, uint64(1), got.Payload.Key)
		require.Equal(t, 2.5, got.Payload.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the registered target")
	}
}

func TestSendToUnknownTargetReturnsError(t *testing.T) {
	reg := remote.NewRegistry()
	server := remote.NewServer(reg, zerolog.Nop())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(lis) }()
	defer server.Stop()

	client, err := remote.Dial(lis.Addr().String(), "missing", protoserde.RecordSerde{}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	err = client.Send(event.NewWatermark[protoserde.Record](10))
	require.Error(t, err)
}
