package persistence

import (
	"context"
	"fmt"

	"github.com/mnemonic-kb/mnemonic/core"
)

// Store is the full storage contract: durable note storage plus ranked
// similarity search over the stored embeddings.
type Store interface {
	core.NoteStore
	core.SimilarityIndex
}

// NewStore creates a note store based on configuration. Postgres connects
// and prepares its schema; bolt opens or creates its database file.
func NewStore(ctx context.Context, config StoreConfig) (Store, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	switch config.Type {
	case StoreMemory:
		return NewMemoryStore(), nil
	case StoreBolt:
		return NewBoltStore(config.Path)
	case StorePostgres:
		return NewPostgresStore(ctx, config.DSN)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
