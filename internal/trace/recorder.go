// Package trace records lifecycle events and stores them per run.
package trace

import (
	"sync"
	"time"

	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/sdk"
)

type EventType string

const (
	EventCreate  EventType = "create"
	EventRelease EventType = "release"
	EventState   EventType = "state"
)

type Event struct {
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`
	Type EventType `json:"type"`
	Kind sdk.Kind  `json:"kind,omitempty"`
	ID   string    `json:"id,omitempty"`
	From string    `json:"from,omitempty"`
	To   string    `json:"to,omitempty"`
	Mode string    `json:"mode,omitempty"`
	Err  string    `json:"error,omitempty"`
}

// Recorder is a lifecycle.Observer that keeps every event in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

var _ lifecycle.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) OnCreate(kind sdk.Kind, id string) {
	r.add(Event{Type: EventCreate, Kind: kind, ID: id})
}

func (r *Recorder) OnRelease(kind sdk.Kind, id string, err error) {
	e := Event{Type: EventRelease, Kind: kind, ID: id}
	if err != nil {
		e.Err = err.Error()
	}
	r.add(e)
}

func (r *Recorder) OnStateChange(from, to lifecycle.State, mode sdk.Mode) {
	r.add(Event{Type: EventState, From: from.String(), To: to.String(), Mode: mode.String()})
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = len(r.events)
	e.Time = r.now()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Creates returns created kinds in order.
func (r *Recorder) Creates() []sdk.Kind {
	return r.kinds(EventCreate)
}

// Releases returns released kinds in order.
func (r *Recorder) Releases() []sdk.Kind {
	return r.kinds(EventRelease)
}

// States returns the target state of every transition in order.
func (r *Recorder) States() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == EventState {
			out = append(out, e.To)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *Recorder) kinds(t EventType) []sdk.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sdk.Kind
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.Kind)
		}
	}
	return out
}
