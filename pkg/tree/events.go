package tree

import "sync"

// EventKind identifies a node event
type EventKind int

const (
	EventPreSet EventKind = iota
	EventPostSet
	EventSync
	EventAdd
)

func (k EventKind) String() string {
	switch k {
	case EventPreSet:
		return "preSet"
	case EventPostSet:
		return "postSet"
	case EventSync:
		return "sync"
	case EventAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Event is delivered to observers.
//
// For value events Node is the emitting leaf and Old/New carry the values
// before and after the write. For EventAdd, Node is the newly created child
// and Old/New are nil; Node.Parent() is the owning container.
type Event struct {
	Kind EventKind
	Node *Node
	Old  any
	New  any
}

// Observer receives node events
type Observer func(Event)

// Unsubscriber removes a previously registered observer. Calling it more
// than once is a no-op.
type Unsubscriber func()

type observer struct {
	fn Observer
}

type observers struct {
	mu     sync.Mutex
	byKind map[EventKind][]*observer
}

func (o *observers) add(kind EventKind, fn Observer) Unsubscriber {
	entry := &observer{fn: fn}

	o.mu.Lock()
	if o.byKind == nil {
		o.byKind = make(map[EventKind][]*observer)
	}
	o.byKind[kind] = append(o.byKind[kind], entry)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()

			list := o.byKind[kind]
			for i, e := range list {
				if e == entry {
					// Copy so that an in-flight emit keeps its snapshot intact
					next := make([]*observer, 0, len(list)-1)
					next = append(next, list[:i]...)
					next = append(next, list[i+1:]...)
					o.byKind[kind] = next
					return
				}
			}
		})
	}
}

func (o *observers) emit(ev Event) {
	o.mu.Lock()
	list := o.byKind[ev.Kind]
	o.mu.Unlock()

	for _, e := range list {
		e.fn(ev)
	}
}
