package boot

import (
	"context"
	"fmt"
	"sync"
)

// FakeManager is an in-memory EntryManager for unit tests.
type FakeManager struct {
	mu        sync.Mutex
	nextID    int
	Entries   map[string]Entry
	Deleted   []string
	CreateErr error
	DeleteErr error
}

func NewFakeManager() *FakeManager {
	return &FakeManager{Entries: map[string]Entry{}}
}

func (f *FakeManager) CreateEntry(_ context.Context, entry Entry) (string, error) {
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("entry-%d", f.nextID)
	f.Entries[id] = entry
	return id, nil
}

func (f *FakeManager) DeleteEntry(_ context.Context, id string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Absence is success.
	delete(f.Entries, id)
	f.Deleted = append(f.Deleted, id)
	return nil
}
