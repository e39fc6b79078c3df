package lifecycle

import "github.com/san-kum/pxwrap/internal/sdk"

// Observer is notified of every handle the manager creates or releases and
// of every state transition, in the order they happen.
type Observer interface {
	OnCreate(kind sdk.Kind, id string)
	OnRelease(kind sdk.Kind, id string, err error)
	OnStateChange(from, to State, mode sdk.Mode)
}

type observers []Observer

func (o observers) create(kind sdk.Kind, id string) {
	for _, obs := range o {
		obs.OnCreate(kind, id)
	}
}

func (o observers) release(kind sdk.Kind, id string, err error) {
	for _, obs := range o {
		obs.OnRelease(kind, id, err)
	}
}

func (o observers) state(from, to State, mode sdk.Mode) {
	for _, obs := range o {
		obs.OnStateChange(from, to, mode)
	}
}
