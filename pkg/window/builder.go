package window

// Builder is a per-window aggregator. It is constructed lazily on the
// first element routed to a window and consumed exactly once, when the
// window fires.
type Builder[T, OUT any] interface {
	// OnElement folds one element into the builder's state.
	OnElement(x T) error
	// Result materializes the final output. The builder is not reused
	// after Result is called.
	Result() (OUT, error)
}

// BuilderFactory constructs a fresh Builder for a newly created window.
type BuilderFactory[T, OUT any] func() Builder[T, OUT]

// CountBuilder counts the elements it observes. Result never errors.
type CountBuilder[T any] struct{ n int64 }

func NewCountBuilder[T any]() Builder[T, int64] { return &CountBuilder[T]{} }

func (b *CountBuilder[T]) OnElement(T) error { b.n++; return nil }
func (b *CountBuilder[T]) Result() (int64, error) { return b.n, nil }

// CollectBuilder accumulates every element it observes, in arrival
// order, and returns the slice at fire time.
type CollectBuilder[T any] struct{ items []T }

func NewCollectBuilder[T any]() Builder[T, []T] { return &CollectBuilder[T]{} }

func (b *CollectBuilder[T]) OnElement(x T) error {
	b.items = append(b.items, x)
	return nil
}
func (b *CollectBuilder[T]) Result() ([]T, error) { return b.items, nil }
