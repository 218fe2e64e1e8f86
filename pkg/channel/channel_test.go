package channel_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/arcflow/pkg/channel"
	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

type item struct{ key uint64 }

func keyOf(x item) uint64 { return x.key }

func mailboxChannel(id string, buf int) (channel.Channel[item], chan event.Event[item]) {
	ch := make(chan event.Event[item], buf)
	return channel.NewLocal(id, ch), ch
}

func drain[T any](ch chan event.Event[T]) []event.Event[T] {
	var out []event.Event[T]
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestForwardSendsToSingleTarget(t *testing.T) {
	ch, mailbox := mailboxChannel("a", 1)
	f := channel.NewForward(zerolog.Nop(), ch)

	require.NoError(t, f.Output(event.NewElement(item{key: 1}, 10, true)))
	require.Len(t, drain(mailbox), 1)
}

func TestBroadcastSendsToAllTargets(t *testing.T) {
	a, mboxA := mailboxChannel("a", 1)
	b, mboxB := mailboxChannel("b", 1)
	bc := channel.NewBroadcast(zerolog.Nop(), a, b)

	require.NoError(t, bc.Output(event.NewWatermark[item](5)))
	require.Len(t, drain(mboxA), 1)
	require.Len(t, drain(mboxB), 1)
}

func TestKeyByRoutesByHash(t *testing.T) {
	a, mboxA := mailboxChannel("a", 4)
	b, mboxB := mailboxChannel("b", 4)
	kb := channel.NewKeyBy(zerolog.Nop(), keyOf, a, b)

	for k := uint64(0); k < 4; k++ {
		require.NoError(t, kb.Output(event.NewElement(item{key: k}, k, true)))
	}
	require.Len(t, drain(mboxA), 2)
	require.Len(t, drain(mboxB), 2)
}

func TestKeyByBroadcastsControlEvents(t *testing.T) {
	a, mboxA := mailboxChannel("a", 1)
	b, mboxB := mailboxChannel("b", 1)
	kb := channel.NewKeyBy(zerolog.Nop(), keyOf, a, b)

	require.NoError(t, kb.Output(event.NewEpoch[item](7)))
	require.Len(t, drain(mboxA), 1)
	require.Len(t, drain(mboxB), 1)
}

func TestRoundRobinAlternatesTargets(t *testing.T) {
	a, mboxA := mailboxChannel("a", 4)
	b, mboxB := mailboxChannel("b", 4)
	rr := channel.NewRoundRobin(zerolog.Nop(), a, b)

	for i := 0; i < 4; i++ {
		require.NoError(t, rr.Output(event.NewElement(item{}, uint64(i), true)))
	}
	require.Len(t, drain(mboxA), 2)
	require.Len(t, drain(mboxB), 2)
}

func TestShuffleDistributesAcrossTargets(t *testing.T) {
	a, mboxA := mailboxChannel("a", 100)
	b, mboxB := mailboxChannel("b", 100)
	sh := channel.NewShuffle(zerolog.Nop(), 42, a, b)

	for i := 0; i < 100; i++ {
		require.NoError(t, sh.Output(event.NewElement(item{}, uint64(i), true)))
	}
	require.NotEmpty(t, drain(mboxA))
	require.NotEmpty(t, drain(mboxB))
}

func TestRemoveChannelStopsRouting(t *testing.T) {
	a, mboxA := mailboxChannel("a", 4)
	b, mboxB := mailboxChannel("b", 4)
	bc := channel.NewBroadcast(zerolog.Nop(), a, b)

	bc.RemoveChannel("b")
	require.NoError(t, bc.Output(event.NewWatermark[item](1)))
	require.Len(t, drain(mboxA), 1)
	require.Empty(t, drain(mboxB))
}

type failingSender struct{ err error }

func (f *failingSender) Send(event.Event[item]) error { return f.err }

func TestRemoteSendFailureIsSerializationErrorAndNonFatalToStrategy(t *testing.T) {
	good, mboxGood := mailboxChannel("good", 1)
	bad := channel.NewRemote[item]("bad", &failingSender{err: errors.New("connection reset")})

	bc := channel.NewBroadcast(zerolog.Nop(), good, bad)
	err := bc.Output(event.NewElement(item{key: 1}, 1, true))
	require.Error(t, err)
	require.ErrorIs(t, err, errs.SerializationError)
	require.Len(t, drain(mboxGood), 1)
}

func TestPortChannelInvokesDeliverDirectly(t *testing.T) {
	var received event.Event[item]
	port := channel.NewPort("port", func(ev event.Event[item]) error {
		received = ev
		return nil
	})
	f := channel.NewForward(zerolog.Nop(), port)

	require.NoError(t, f.Output(event.NewElement(item{key: 9}, 3, true)))
	require.Equal(t, uint64(9), received.Payload.key)
}
