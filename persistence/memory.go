package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemonic-kb/mnemonic/core"
)

// MemoryStore implements Store with in-memory maps. Used for tests and
// throwaway local runs; contents are lost on close.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[uuid.UUID]core.Note
}

// NewMemoryStore creates an empty in-memory note store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes: make(map[uuid.UUID]core.Note),
	}
}

// CreateNote stores a new note, assigning an ID and timestamps if unset
func (m *MemoryStore) CreateNote(ctx context.Context, note core.Note) (core.Note, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = []string{}
	}

	m.notes[note.ID] = cloneNote(note)
	return note, nil
}

// GetNote returns a single note owned by ownerID
func (m *MemoryStore) GetNote(ctx context.Context, ownerID string, id uuid.UUID) (core.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	note, ok := m.notes[id]
	if !ok || note.OwnerID != ownerID {
		return core.Note{}, core.NewQueryError("GetNote", core.ErrNoteNotFound, id.String(), false)
	}
	return cloneNote(note), nil
}

// ListNotes returns a page of the owner's notes, newest first, with an
// optional tag filter, plus the total count matching the filter
func (m *MemoryStore) ListNotes(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Note, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []core.Note
	for _, note := range m.notes {
		if note.OwnerID != ownerID {
			continue
		}
		if opts.Tag != "" && !hasTag(note.Tags, opts.Tag) {
			continue
		}
		owned = append(owned, cloneNote(note))
	}

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := len(owned)
	if opts.Offset >= len(owned) {
		return []core.Note{}, total, nil
	}
	owned = owned[opts.Offset:]
	if opts.Limit > 0 && len(owned) > opts.Limit {
		owned = owned[:opts.Limit]
	}
	return owned, total, nil
}

// UpdateNote replaces a stored note's writable fields
func (m *MemoryStore) UpdateNote(ctx context.Context, note core.Note) (core.Note, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.notes[note.ID]
	if !ok || existing.OwnerID != note.OwnerID {
		return core.Note{}, core.NewQueryError("UpdateNote", core.ErrNoteNotFound, note.ID.String(), false)
	}

	note.CreatedAt = existing.CreatedAt
	note.UpdatedAt = time.Now().UTC()
	if note.Tags == nil {
		note.Tags = []string{}
	}

	m.notes[note.ID] = cloneNote(note)
	return note, nil
}

// DeleteNote removes a note owned by ownerID
func (m *MemoryStore) DeleteNote(ctx context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	note, ok := m.notes[id]
	if !ok || note.OwnerID != ownerID {
		return core.NewQueryError("DeleteNote", core.ErrNoteNotFound, id.String(), false)
	}
	delete(m.notes, id)
	return nil
}

// ListTags returns the owner's distinct tags, sorted
func (m *MemoryStore) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, note := range m.notes {
		if note.OwnerID != ownerID {
			continue
		}
		for _, tag := range note.Tags {
			if tag != "" {
				seen[tag] = struct{}{}
			}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// FindByOwnerAndIDs resolves note IDs for one owner, skipping unknown IDs
func (m *MemoryStore) FindByOwnerAndIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]core.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notes := make([]core.Note, 0, len(ids))
	for _, id := range ids {
		if note, ok := m.notes[id]; ok && note.OwnerID == ownerID {
			notes = append(notes, cloneNote(note))
		}
	}
	return notes, nil
}

// SearchByOwner performs a flat similarity scan over the owner's notes
func (m *MemoryStore) SearchByOwner(ctx context.Context, ownerID string, query core.EmbeddingVector, limit int, minSimilarity float64) ([]core.ScoredNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []core.Note
	for _, note := range m.notes {
		if note.OwnerID == ownerID {
			owned = append(owned, cloneNote(note))
		}
	}
	return scanSimilar(owned, query, limit, minSimilarity)
}

// Close clears the store
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = make(map[uuid.UUID]core.Note)
	return nil
}

func cloneNote(note core.Note) core.Note {
	clone := note
	clone.Tags = append([]string(nil), note.Tags...)
	clone.Embedding = append(core.EmbeddingVector(nil), note.Embedding...)
	return clone
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
