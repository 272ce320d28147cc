// Package notes implements owner-scoped CRUD over the note store. Notes
// are embedded at write time so they are immediately visible to
// similarity search; a note whose embedding generation fails is not
// stored.
package notes

import (
	"context"

	"github.com/google/uuid"
	"github.com/mnemonic-kb/mnemonic/core"
)

// Service provides note management backed by a store and an embedder.
type Service struct {
	store    core.NoteStore
	embedder core.Embedder
}

// NewService creates a note service
func NewService(store core.NoteStore, embedder core.Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// CreateInput carries the writable fields of a new note.
type CreateInput struct {
	Title   string
	Content string
	Tags    []string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// Create embeds and stores a new note for the owner.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (core.Note, error) {
	note := core.Note{
		OwnerID: ownerID,
		Title:   input.Title,
		Content: input.Content,
		Tags:    input.Tags,
	}
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

	embedding, err := s.embedder.Embed(ctx, embeddingText(note))
	if err != nil {
		return core.Note{}, err
	}
	note.Embedding = embedding

	return s.store.CreateNote(ctx, note)
}

// Get returns a single note owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (core.Note, error) {
	return s.store.GetNote(ctx, ownerID, id)
}

// List returns a page of the owner's notes plus the total count.
func (s *Service) List(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Note, int, error) {
	return s.store.ListNotes(ctx, ownerID, opts)
}

// Update applies a partial update. The note is re-embedded only when its
// title or content changed, since tags do not participate in the
// embedding text.
func (s *Service) Update(ctx context.Context, ownerID string, id uuid.UUID, input UpdateInput) (core.Note, error) {
	note, err := s.store.GetNote(ctx, ownerID, id)
	if err != nil {
		return core.Note{}, err
	}

	reembed := false
	if input.Title != nil && *input.Title != note.Title {
		note.Title = *input.Title
		reembed = true
	}
	if input.Content != nil && *input.Content != note.Content {
		note.Content = *input.Content
		reembed = true
	}
	if input.Tags != nil {
		note.Tags = *input.Tags
	}
	if err := core.ValidateNote(note); err != nil {
		return core.Note{}, err
	}

	if reembed {
		embedding, err := s.embedder.Embed(ctx, embeddingText(note))
		if err != nil {
			return core.Note{}, err
		}
		note.Embedding = embedding
	}

	return s.store.UpdateNote(ctx, note)
}

// Delete removes a note owned by ownerID.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	return s.store.DeleteNote(ctx, ownerID, id)
}

// Tags returns the owner's distinct tags.
func (s *Service) Tags(ctx context.Context, ownerID string) ([]string, error) {
	return s.store.ListTags(ctx, ownerID)
}

// embeddingText is the canonical text a note is embedded from.
func embeddingText(note core.Note) string {
	return note.Title + "\n" + note.Content
}
