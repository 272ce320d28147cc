package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mnemonic-kb/mnemonic/core"
	"go.etcd.io/bbolt"
)

const notesBucket = "notes"

// BoltStore implements Store using BoltDB for single-node deployments.
// Notes are stored as JSON keyed by ID; similarity search is a flat scan
// over the owner's embeddings.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// storedNote is the on-disk representation. Note's JSON tags omit owner
// and embedding for the wire; storage needs both.
type storedNote struct {
	ID        uuid.UUID            `json:"id"`
	OwnerID   string               `json:"owner_id"`
	Title     string               `json:"title"`
	Content   string               `json:"content"`
	Tags      []string             `json:"tags"`
	Embedding core.EmbeddingVector `json:"embedding,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewBoltStore opens (or creates) a BoltDB note store at dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(notesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize notes bucket: %w", err)
	}

	return &BoltStore{db: db, path: dbPath}, nil
}

// CreateNote stores a new note, assigning an ID and timestamps if unset
func (b *BoltStore) CreateNote(ctx context.Context, note core.Note) (core.Note, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

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

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return putNote(tx, note)
	})
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to save note %s: %w", note.ID, err)
	}
	return note, nil
}

// GetNote returns a single note owned by ownerID
func (b *BoltStore) GetNote(ctx context.Context, ownerID string, id uuid.UUID) (core.Note, error) {
	var note core.Note
	err := b.db.View(func(tx *bbolt.Tx) error {
		found, err := getNote(tx, id)
		if err != nil {
			return err
		}
		if found.OwnerID != ownerID {
			return core.NewQueryError("GetNote", core.ErrNoteNotFound, id.String(), false)
		}
		note = found
		return nil
	})
	if err != nil {
		return core.Note{}, err
	}
	return note, nil
}

// ListNotes returns a page of the owner's notes, newest first
func (b *BoltStore) ListNotes(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Note, int, error) {
	owned, err := b.ownerNotes(ownerID)
	if err != nil {
		return nil, 0, err
	}

	if opts.Tag != "" {
		filtered := owned[:0]
		for _, note := range owned {
			if hasTag(note.Tags, opts.Tag) {
				filtered = append(filtered, note)
			}
		}
		owned = filtered
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
func (b *BoltStore) UpdateNote(ctx context.Context, note core.Note) (core.Note, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getNote(tx, note.ID)
		if err != nil {
			return err
		}
		if existing.OwnerID != note.OwnerID {
			return core.NewQueryError("UpdateNote", core.ErrNoteNotFound, note.ID.String(), false)
		}
		note.CreatedAt = existing.CreatedAt
		note.UpdatedAt = time.Now().UTC()
		if note.Tags == nil {
			note.Tags = []string{}
		}
		return putNote(tx, note)
	})
	if err != nil {
		return core.Note{}, err
	}
	return note, nil
}

// DeleteNote removes a note owned by ownerID
func (b *BoltStore) DeleteNote(ctx context.Context, ownerID string, id uuid.UUID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getNote(tx, id)
		if err != nil {
			return err
		}
		if existing.OwnerID != ownerID {
			return core.NewQueryError("DeleteNote", core.ErrNoteNotFound, id.String(), false)
		}
		return tx.Bucket([]byte(notesBucket)).Delete([]byte(id.String()))
	})
}

// ListTags returns the owner's distinct tags, sorted
func (b *BoltStore) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	owned, err := b.ownerNotes(ownerID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, note := range owned {
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
func (b *BoltStore) FindByOwnerAndIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]core.Note, error) {
	notes := make([]core.Note, 0, len(ids))
	err := b.db.View(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			note, err := getNote(tx, id)
			if err != nil {
				if core.IsNoteNotFound(err) {
					continue
				}
				return err
			}
			if note.OwnerID == ownerID {
				notes = append(notes, note)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// SearchByOwner performs a flat similarity scan over the owner's notes
func (b *BoltStore) SearchByOwner(ctx context.Context, ownerID string, query core.EmbeddingVector, limit int, minSimilarity float64) ([]core.ScoredNote, error) {
	owned, err := b.ownerNotes(ownerID)
	if err != nil {
		return nil, core.NewQueryError("SearchByOwner", core.ErrIndexUnavailable, err.Error(), false)
	}
	return scanSimilar(owned, query, limit, minSimilarity)
}

// Close closes the underlying database
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) ownerNotes(ownerID string) ([]core.Note, error) {
	var owned []core.Note
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(notesBucket)).ForEach(func(k, v []byte) error {
			var stored storedNote
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt note record %s: %w", string(k), err)
			}
			if stored.OwnerID == ownerID {
				owned = append(owned, stored.toNote())
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return owned, nil
}

func putNote(tx *bbolt.Tx, note core.Note) error {
	data, err := json.Marshal(storedNote{
		ID:        note.ID,
		OwnerID:   note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		Tags:      note.Tags,
		Embedding: note.Embedding,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(notesBucket)).Put([]byte(note.ID.String()), data)
}

func getNote(tx *bbolt.Tx, id uuid.UUID) (core.Note, error) {
	data := tx.Bucket([]byte(notesBucket)).Get([]byte(id.String()))
	if data == nil {
		return core.Note{}, core.NewQueryError("GetNote", core.ErrNoteNotFound, id.String(), false)
	}
	var stored storedNote
	if err := json.Unmarshal(data, &stored); err != nil {
		return core.Note{}, fmt.Errorf("corrupt note record %s: %w", id, err)
	}
	return stored.toNote(), nil
}

func (s storedNote) toNote() core.Note {
	return core.Note{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Title:     s.Title,
		Content:   s.Content,
		Tags:      s.Tags,
		Embedding: s.Embedding,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
