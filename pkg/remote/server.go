package remote

import (
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
)

// Registry maps target node ids to a decode-and-deliver callback. One
// Registry is shared by every node input a Server might receive events
// for, the way a single node.Node fans its inputs into one Inbound
// channel by name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]func(payload []byte) error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]func(payload []byte) error)}
}

// Register decodes incoming payloads for targetID with serde and
// forwards the resulting event onto ch.
func Register[T any](r *Registry, targetID string, serde event.Serde[T], ch chan<- event.Event[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[targetID] = func(payload []byte) error {
		ev, err := event.DecodeBytes(payload, serde)
		if err != nil {
			return err
		}
		ch <- ev
		return nil
	}
}

// Unregister removes a previously registered target.
func (r *Registry) Unregister(targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, targetID)
}

func (r *Registry) dispatch(targetID string, payload []byte) error {
	r.mu.RLock()
	h, ok := r.handlers[targetID]
	r.mu.RUnlock()
	if !ok {
		return errs.New(errs.BadTaskError, "remote.Server: unknown target "+targetID)
	}
	return h(payload)
}

// Server is the receiving end of the Remote channel transport: one per
// process, fronting every node input that accepts events from remote
// peers.
type Server struct {
	grpcServer *grpc.Server
	registry   *Registry
	logger     zerolog.Logger
}

// NewServer constructs a Server dispatching decoded events through
// registry.
func NewServer(registry *Registry, logger zerolog.Logger, opts ...grpc.ServerOption) *Server {
	gs := grpc.NewServer(append([]grpc.ServerOption{grpc.ForceServerCodec(rawCodec{})}, opts...)...)
	s := &Server{grpcServer: gs, registry: registry, logger: logger}
	gs.RegisterService(&serviceDesc, s)
	return s
}

// Serve blocks accepting connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop gracefully drains in-flight RPCs before returning.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) handleSend(_ context.Context, envelope []byte) ([]byte, error) {
	targetID, payload, err := decodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	if err := s.registry.dispatch(targetID, payload); err != nil {
		s.logger.Warn().Str("target_id", targetID).Err(err).Msg("remote: dropping undeliverable event")
		return nil, err
	}
	return []byte{}, nil
}
