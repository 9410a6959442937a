package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fooEvent struct {
	msg   string
	flags uint8
}

func (fooEvent) Name() string   { return "foo" }
func (e fooEvent) Flags() uint8 { return e.flags }

func TestBusSimple(t *testing.T) {
	bus := NewEventBus()
	x := ""

	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		x = e.(fooEvent).msg
		return EHANDLE_OK
	})
	require.Equal(t, 1, bus.CountHandlers("foo"))
	assert.Equal(t, 0, bus.CountHandlers("bar"))

	ok, err := bus.Publish(fooEvent{msg: "Hello, World!"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello, World!", x)
}

func TestBusAsync(t *testing.T) {
	bus := NewEventBus()
	c := make(chan uint8, 2)

	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		c <- 42
		return EHANDLE_OK
	})
	require.NoError(t, bus.PublishNonblocking(fooEvent{msg: "asdf", flags: EFLAG_ASYNC}))

	select {
	case r := <-c:
		assert.Equal(t, uint8(42), r)
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestBusNonblockingNeedsAsync(t *testing.T) {
	assert.Error(t, NewEventBus().PublishNonblocking(fooEvent{}))
}

func TestBusBadFlags(t *testing.T) {
	_, err := NewEventBus().Publish(fooEvent{flags: EFLAG_ASYNC_UNSAFE})
	assert.Error(t, err)
}

func TestBusCancel(t *testing.T) {
	bus := NewEventBus()
	bus.RegisterHandler("foo", func(e Event) EventHandleResult { return EHANDLE_CANCEL })

	ok, err := bus.Publish(fooEvent{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = bus.Publish(fooEvent{flags: EFLAG_UNCANCELLABLE})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBusHandlerPanic(t *testing.T) {
	bus := NewEventBus()
	ran := false
	bus.RegisterHandler("foo", func(e Event) EventHandleResult { panic("boom") })
	bus.RegisterHandler("foo", func(e Event) EventHandleResult {
		ran = true
		return EHANDLE_OK
	})

	ok, err := bus.Publish(fooEvent{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ran)
}
