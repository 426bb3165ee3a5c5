package backend

import (
	"sync"

	"github.com/badgerodon/collections/stack"
)

// Journal is an undo log. Every mutation of journaled state pushes the closure that
// restores the previous value.
type Journal struct {
	lock  sync.Mutex
	undos *stack.Stack
}

func NewJournal() *Journal {
	return &Journal{
		undos: stack.New(),
	}
}

func (j *Journal) Append(undo func()) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.undos.Push(undo)
}

func (j *Journal) Snapshot() int {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.undos.Len()
}

func (j *Journal) RevertToSnapshot(id int) {
	j.lock.Lock()
	undos := make([]func(), 0)
	for j.undos.Len() > id {
		undos = append(undos, j.undos.Pop().(func()))
	}
	j.lock.Unlock()
	// undo closures may take their owner's lock
	for _, undo := range undos {
		undo()
	}
}

func (j *Journal) Commit() {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.undos = stack.New()
}
