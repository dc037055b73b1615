package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	"fintrack/internal/storage/dynamo"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend builds the store. Connections are established on first use,
// so a store is returned even when the database is not reachable yet.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		store := sqlite.New(config.SQLitePath, f.logger)
		f.logger.InfoContext(ctx, "Initialized SQLite backend",
			log.FieldBackend, config.Type.String(),
			"db_path", config.SQLitePath)
		return &BackendResult{Store: store, Cleanup: store.Close}, nil

	case DynamoBackend:
		store := dynamo.New(config.Dynamo, f.logger)
		f.logger.InfoContext(ctx, "Initialized DynamoDB backend",
			log.FieldBackend, config.Type.String(),
			"region", config.Dynamo.Region,
			"endpoint", config.Dynamo.Endpoint,
			"table_prefix", config.Dynamo.TablePrefix)
		return &BackendResult{Store: store, Cleanup: store.Close}, nil

	case MemoryBackend:
		store := memory.New()
		f.logger.WarnContext(ctx, "Initialized memory backend, data is lost on restart",
			log.FieldBackend, config.Type.String())
		return &BackendResult{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
