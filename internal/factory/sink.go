package factory

import "poolFactory/internal/model"

// EventSink receives registry events as operations commit.
type EventSink interface {
	Emit(event model.Event)
}
