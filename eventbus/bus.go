package eventbus

import (
	"fmt"
	"sync"

	"github.com/mit-dci/pfs/logging"
)

// An EventBus takes events and forwards them to event handlers matched by name.
type EventBus struct {
	mutex        sync.Mutex // guards the two maps
	handlers     map[string][]*eventhandler
	eventMutexes map[string]*sync.Mutex
}

// NewEventBus creates a new event bus without any event handlers.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers:     map[string][]*eventhandler{},
		eventMutexes: map[string]*sync.Mutex{},
	}
}

const (
	// EHANDLE_OK means that the event should not be cancelled.
	EHANDLE_OK = 0

	// EHANDLE_CANCEL means that the event should be cancelled.
	EHANDLE_CANCEL = 1
)

// EventHandleResult is a flag field to represent certain things.
type EventHandleResult uint8

type eventhandler struct {
	handleFunc func(Event) EventHandleResult
	mutex      sync.Mutex // don't race a handler against itself
}

// RegisterHandler registers an event handler function by name
func (b *EventBus) RegisterHandler(eventName string, hFunc func(Event) EventHandleResult) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.handlers[eventName]; !ok {
		b.eventMutexes[eventName] = &sync.Mutex{}
	}
	b.handlers[eventName] = append(b.handlers[eventName], &eventhandler{handleFunc: hFunc})
	logging.Debugf("eventbus: registered handler for %s", eventName)
}

// CountHandlers is a convenience function.
func (b *EventBus) CountHandlers(name string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.handlers[name])
}

// Publish sends an event to the relevant event handlers.  It returns false
// if a handler cancelled a cancellable event.
func (b *EventBus) Publish(event Event) (bool, error) {
	if err := checkEventSanity(event); err != nil {
		return true, err
	}

	name := event.Name()

	// copy the handler list so we don't hold the bus lock while they run
	b.mutex.Lock()
	eventMutex, present := b.eventMutexes[name]
	if !present {
		b.mutex.Unlock()
		return true, nil
	}
	hs := make([]*eventhandler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	b.mutex.Unlock()

	eventMutex.Lock()
	defer eventMutex.Unlock()

	f := event.Flags()
	async := (f & EFLAG_ASYNC_UNSAFE) != 0
	uncan := (f & EFLAG_UNCANCELLABLE) != 0

	ok := true
	for _, h := range hs {
		if async {
			go callEventHandler(h, event)
			continue
		}

		res, err := callEventHandler(h, event)
		if err != nil {
			logging.Warnf("eventbus: handler for %s: %s", name, err.Error())
		}
		if res == EHANDLE_CANCEL && !uncan {
			ok = false
		}
	}

	return ok, nil
}

// PublishNonblocking sends async events off to the relevant handlers witout blocking.
func (b *EventBus) PublishNonblocking(event Event) error {
	if (event.Flags() & EFLAG_ASYNC_UNSAFE) == 0 {
		return fmt.Errorf("event %s not async but called on function that needs async", event.Name())
	}
	go b.Publish(event)
	return nil
}

// callEventHandler runs one handler.  A panicking handler becomes an error
// and counts as OK.
func callEventHandler(h *eventhandler, event Event) (res EventHandleResult, err error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	defer func() {
		if r := recover(); r != nil {
			res = EHANDLE_OK
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.handleFunc(event), nil
}

func checkEventSanity(e Event) error {
	f := e.Flags()

	// an async caller returns before a handler could cancel
	if (f&EFLAG_ASYNC_UNSAFE) != 0 && (f&EFLAG_UNCANCELLABLE) == 0 {
		return fmt.Errorf("event of type %s flagged as async but isn't cancellable, is it using EFLAG_ASYNC_UNSAFE instead of EFLAG_ASYNC?", e.Name())
	}
	return nil
}
