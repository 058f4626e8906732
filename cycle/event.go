// Package cycle provides the discrete-event clock that drives the
// memory controller core: a cycle-indexed event queue and the request
// ID generators used to name requests as they are created.
package cycle

// Cycle is a count of simulator ticks. It is a logical counter, not
// wall-clock time.
type Cycle uint64

// A Handler reacts to an Event when its scheduled cycle arrives.
type Handler interface {
	Handle(e Event)
}

// Kind distinguishes the origin of an Event so a Handler can dispatch
// without type-asserting the Payload.
type Kind int

// The event kinds the controller schedules.
const (
	KindRefreshPulse Kind = iota
	KindCustom
)

// An Event is something scheduled to happen at a future cycle.
type Event interface {
	Time() Cycle
	Handler() Handler
	Kind() Kind
	Payload() interface{}
	seq() uint64
}

// EventBase is embedded by concrete event types to satisfy Event.
type EventBase struct {
	AtCycle    Cycle
	EventKind  Kind
	TheHandler Handler
	Data       interface{}
	sequence   uint64
}

// Time returns the cycle at which the event is due.
func (e *EventBase) Time() Cycle { return e.AtCycle }

// Handler returns the handler responsible for the event.
func (e *EventBase) Handler() Handler { return e.TheHandler }

// Kind returns the event's kind tag.
func (e *EventBase) Kind() Kind { return e.EventKind }

// Payload returns the event's associated data, if any.
func (e *EventBase) Payload() interface{} { return e.Data }

func (e *EventBase) seq() uint64 { return e.sequence }

// NewEvent creates an event to be handled by h at cycle t.
func NewEvent(t Cycle, h Handler, kind Kind, payload interface{}) *EventBase {
	return &EventBase{AtCycle: t, EventKind: kind, TheHandler: h, Data: payload}
}
