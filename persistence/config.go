package persistence

import "fmt"

// StoreType identifies a note store backend
type StoreType string

const (
	StoreMemory   StoreType = "memory"
	StoreBolt     StoreType = "bolt"
	StorePostgres StoreType = "postgres"
)

// StoreConfig holds note store configuration
type StoreConfig struct {
	// Type of store: memory, bolt, postgres
	Type StoreType `yaml:"type" json:"type"`

	// Path to the database file (bolt only)
	Path string `yaml:"path" json:"path"`

	// DSN is the connection string (postgres only)
	DSN string `yaml:"dsn" json:"dsn"`
}

// DefaultStoreConfig returns a sensible local default
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreBolt,
		Path: "data/mnemonic.db",
	}
}

// ValidateConfig checks that the configuration is complete for its type
func ValidateConfig(config StoreConfig) error {
	switch config.Type {
	case StoreMemory:
		return nil
	case StoreBolt:
		if config.Path == "" {
			return fmt.Errorf("path is required for bolt store")
		}
		return nil
	case StorePostgres:
		if config.DSN == "" {
			return fmt.Errorf("dsn is required for postgres store")
		}
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
