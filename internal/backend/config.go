package backend

import (
	"fmt"
	"net/url"
	"strings"

	"fintrack/internal/storage/dynamo"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLitePath string

	// DynamoDB specific
	Dynamo dynamo.Config
}

// ParseURL reads a DATABASE_URL of the form sqlite://<path>,
// dynamodb://[?region=&endpoint=&table_prefix=] or memory://.
func ParseURL(raw string) (Config, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok {
		return Config{}, fmt.Errorf("database url %q: missing scheme", raw)
	}

	cfg := Config{Type: BackendType(strings.ToLower(scheme))}
	switch cfg.Type {
	case SQLiteBackend:
		path, _, _ := strings.Cut(rest, "?")
		cfg.SQLitePath = path
	case DynamoBackend:
		u, err := url.Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("database url: %w", err)
		}
		q := u.Query()
		cfg.Dynamo = dynamo.Config{
			Region:      q.Get("region"),
			Endpoint:    q.Get("endpoint"),
			TablePrefix: q.Get("table_prefix"),
		}
	case MemoryBackend:
	default:
		return Config{}, fmt.Errorf("unsupported database scheme %q: must be one of %v", scheme, GetBackendTypes())
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		// Migrations run on their own connection, which an in-memory
		// database does not share.
		if c.SQLitePath == ":memory:" || strings.HasPrefix(c.SQLitePath, "file::memory:") {
			return fmt.Errorf("in-memory SQLite is not supported, use memory:// instead")
		}
	case DynamoBackend:
		if c.Dynamo.Endpoint != "" {
			u, err := url.Parse(c.Dynamo.Endpoint)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("invalid DynamoDB endpoint %q: must be an http(s) URL", c.Dynamo.Endpoint)
			}
		}
	}
	return nil
}
