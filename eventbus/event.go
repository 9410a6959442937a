package eventbus

// An Event is a description of "something" that has taken place.
type Event interface {
	Name() string
	Flags() uint8
}

const (
	// EFLAG_NORMAL means this is a normal sync event.
	EFLAG_NORMAL = 0

	// EFLAG_UNCANCELLABLE means that handlers can't cancel the event.
	EFLAG_UNCANCELLABLE = 1 << 0

	// EFLAG_ASYNC_UNSAFE marks an async event.  Don't use it alone.
	EFLAG_ASYNC_UNSAFE = 1 << 1

	// EFLAG_ASYNC means the event is handled on its own goroutine.
	EFLAG_ASYNC = EFLAG_ASYNC_UNSAFE | EFLAG_UNCANCELLABLE
)
