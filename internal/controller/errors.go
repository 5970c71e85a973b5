package controller

import (
	"errors"
	"fmt"
	"maps"
)

var (
	// ErrUnhandledRequest means no handler in the chain claimed a request.
	// This is a configuration error.
	ErrUnhandledRequest = errors.New("no handler claims request")

	// ErrUnregisteredFault wraps a handler error that is not a registered
	// fault. It is never rendered.
	ErrUnregisteredFault = errors.New("unregistered fault")
)

// Registered fault IDs of the default manifest.
const (
	FaultInvalidDevice      = "InvalidDevice"
	FaultInvalidCredentials = "InvalidCredentials"
)

// Fault is an internal, named condition raised by a handler. Registered
// faults render an error page; all others propagate.
type Fault struct {
	ID     string
	Detail map[string]any
	Err    error
}

// NewFault returns a fault with optional template detail.
func NewFault(id string, detail map[string]any) *Fault {
	return &Fault{ID: id, Detail: maps.Clone(detail)}
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fault %s: %v", f.ID, f.Err)
	}
	return "fault " + f.ID
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches any fault with the same ID.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.ID == f.ID
}
