package outline

type EventType int

const (
	EventInserted EventType = iota + 1
	EventRemoved
	EventMoved
	EventContentChanged
	EventKindChanged
	EventRestored
	EventSaved
)

func (t EventType) String() string {
	switch t {
	case EventInserted:
		return "inserted"
	case EventRemoved:
		return "removed"
	case EventMoved:
		return "moved"
	case EventContentChanged:
		return "content-changed"
	case EventKindChanged:
		return "kind-changed"
	case EventRestored:
		return "restored"
	case EventSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Event describes one change to the line collection. Index is the line's
// position after the change (before it, for EventRemoved); From is the source
// position of a move.
type Event struct {
	Type       EventType
	Line       LineID
	Index      int
	From       int
	Transition Transition
}

// Mutating is true for events caused by an edit (as opposed to a save).
func (e Event) Mutating() bool { return e.Type != EventSaved }

type observers struct {
	next int
	fns  map[int]func(Event)
	// ordered ids so delivery follows subscription order
	order []int
}

func (o *observers) subscribe(fn func(Event)) func() {
	if o.fns == nil {
		o.fns = map[int]func(Event){}
	}
	o.next++
	id := o.next
	o.fns[id] = fn
	o.order = append(o.order, id)
	return func() {
		delete(o.fns, id)
		for i, x := range o.order {
			if x == id {
				o.order = append(o.order[:i], o.order[i+1:]...)
				break
			}
		}
	}
}

func (o *observers) emit(e Event) {
	for _, id := range append([]int(nil), o.order...) {
		if fn := o.fns[id]; fn != nil {
			fn(e)
		}
	}
}
