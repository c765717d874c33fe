package framework

import (
	"context"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// EventHandler handles events dispatched by Loop.
type EventHandler interface {
	HandleEvent(ctx context.Context) error
}

// HandleEventFunc is the func form of EventHandler.
type HandleEventFunc func(ctx context.Context) error

// HandleEvent implements EventHandler.
func (f HandleEventFunc) HandleEvent(ctx context.Context) error {
	return f(ctx)
}
