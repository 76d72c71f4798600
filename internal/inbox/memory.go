package inbox

import (
	"context"
	"sync"

	"github.com/amishk599/jobintake/internal/model"
)

// Memory is an in-process mailbox used by dry runs and tests.
type Memory struct {
	mu         sync.Mutex
	folders    map[string][]model.InboundItem
	ListErr    error
	ArchiveErr error
}

var _ Reader = (*Memory)(nil)

// NewMemory returns a mailbox holding items in folder.
func NewMemory(folder string, items ...model.InboundItem) *Memory {
	m := &Memory{folders: make(map[string][]model.InboundItem)}
	m.folders[folder] = append(m.folders[folder], items...)
	return m
}

func (m *Memory) ListInboundItems(_ context.Context, folder string) ([]model.InboundItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]model.InboundItem(nil), m.folders[folder]...), nil
}

// ArchiveItems moves matching items from any folder into archiveFolder.
func (m *Memory) ArchiveItems(_ context.Context, ids []string, archiveFolder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ArchiveErr != nil {
		return m.ArchiveErr
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for folder, items := range m.folders {
		if folder == archiveFolder {
			continue
		}
		kept := items[:0]
		for _, it := range items {
			if want[it.ID] {
				m.folders[archiveFolder] = append(m.folders[archiveFolder], it)
				continue
			}
			kept = append(kept, it)
		}
		m.folders[folder] = kept
	}
	return nil
}

// Items returns a copy of the items currently in folder.
func (m *Memory) Items(folder string) []model.InboundItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.InboundItem(nil), m.folders[folder]...)
}
