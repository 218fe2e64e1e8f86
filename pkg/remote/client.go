package remote

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// Client implements channel.RemoteSender[T] over a gRPC connection to
// one downstream peer, addressing a single target node id on that
// peer's Server.
type Client[T any] struct {
	conn     *grpc.ClientConn
	targetID string
	serde    event.Serde[T]
	logger   zerolog.Logger
	timeout  time.Duration
}

// Dial connects to a remote.Server at addr. With no dialOpts the
// connection uses insecure credentials; callers needing encrypted
// transport pass grpc.WithTransportCredentials(credentials.NewTLS(...))
// themselves.
func Dial[T any](addr, targetID string, serde event.Serde[T], logger zerolog.Logger, dialOpts ...grpc.DialOption) (*Client[T], error) {
	opts := append([]grpc.DialOption{}, dialOpts...)
	if len(dialOpts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "remote.Dial", err)
	}
	return &Client[T]{conn: conn, targetID: targetID, serde: serde, logger: logger, timeout: 5 * time.Second}, nil
}

// Send implements channel.RemoteSender[T].
func (c *Client[T]) Send(ev event.Event[T]) error {
	payload, err := event.EncodeBytes(ev, c.serde)
	if err != nil {
		return err
	}
	req := encodeEnvelope(c.targetID, payload)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var reply []byte
	if err := c.conn.Invoke(ctx, sendMethod, &req, &reply, grpc.ForceCodec(rawCodec{})); err != nil {
		return errs.Wrap(errs.SerializationError, "remote.Client.Send", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (c *Client[T]) Close() error {
	return c.conn.Close()
}
