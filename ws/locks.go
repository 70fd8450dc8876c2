package ws

import (
	"sync"

	"github.com/scribe-notes/server/domain"
)

// noteLocks hands out one mutex per note id so that concurrent mutations of
// the same note are serialized while different notes proceed in parallel.
// Entries are reference counted and dropped when released, so the map does
// not grow with the number of notes ever touched.
type noteLocks struct {
	mu sync.Mutex
	m  map[domain.NoteID]*noteLock
}

type noteLock struct {
	mu   sync.Mutex
	refs int
}

func newNoteLocks() *noteLocks {
	return &noteLocks{m: make(map[domain.NoteID]*noteLock)}
}

// Acquire locks the note's mutex and returns the matching release func.
func (l *noteLocks) Acquire(id domain.NoteID) (release func()) {
	l.mu.Lock()
	nl, ok := l.m[id]
	if !ok {
		nl = &noteLock{}
		l.m[id] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()
	return func() {
		nl.mu.Unlock()
		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
