package journal

import "poolFactory/internal/model"

// Appender defines a sink for emitted event records.
type Appender interface {
	AppendEvents(records []model.EventRecord) error
}

// Journal extends Appender with the recovery hook for commits that appended
// records but never saved the matching snapshot.
type Journal interface {
	Appender
	DropAfter(seq uint64) (int, error)
}
