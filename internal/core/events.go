package core

import (
	"github.com/lumipallolabs/facetmap/internal/model"
	"github.com/lumipallolabs/facetmap/internal/render"
)

// Event represents a state change from the controller
type Event interface {
	isEvent()
}

// RefreshedEvent is emitted when the root level is (re)built
type RefreshedEvent struct {
	Root  *model.Node
	Frame render.Frame
}

func (RefreshedEvent) isEvent() {}

// LoadStartedEvent is emitted when a root fetch is issued
type LoadStartedEvent struct {
	Generation uint64
}

func (LoadStartedEvent) isEvent() {}

// ZoomStartedEvent is emitted when a drill fetch is issued
type ZoomStartedEvent struct {
	Node       *model.Node
	Generation uint64
}

func (ZoomStartedEvent) isEvent() {}

// ZoomedInEvent is emitted when a new level is displayed
type ZoomedInEvent struct {
	Node  *model.Node
	Level int
	Frame render.Frame
}

func (ZoomedInEvent) isEvent() {}

// ZoomedOutEvent is emitted when the parent level is restored
type ZoomedOutEvent struct {
	Level int
	Frame render.Frame
}

func (ZoomedOutEvent) isEvent() {}

// ZoomFailedEvent is emitted when a fetch fails; the prior view stays interactive
type ZoomFailedEvent struct {
	Node *model.Node
	Err  error
}

func (ZoomFailedEvent) isEvent() {}

// FetchCanceledEvent is emitted when a pending fetch is superseded
type FetchCanceledEvent struct {
	Node       *model.Node
	Generation uint64
}

func (FetchCanceledEvent) isEvent() {}
