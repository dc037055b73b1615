package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"fintrack/internal/log"
	"fintrack/internal/storage/dynamo"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Config
		wantErr bool
	}{
		{
			name: "sqlite relative path",
			raw:  "sqlite://./data/fintrack.db",
			want: Config{Type: SQLiteBackend, SQLitePath: "./data/fintrack.db"},
		},
		{
			name: "sqlite absolute path",
			raw:  "sqlite:///var/lib/fintrack/app.db",
			want: Config{Type: SQLiteBackend, SQLitePath: "/var/lib/fintrack/app.db"},
		},
		{
			name: "dynamodb local",
			raw:  "dynamodb://?region=eu-west-1&endpoint=http://localhost:8000&table_prefix=dev_",
			want: Config{Type: DynamoBackend, Dynamo: dynamo.Config{
				Region: "eu-west-1", Endpoint: "http://localhost:8000", TablePrefix: "dev_",
			}},
		},
		{
			name: "dynamodb defaults",
			raw:  "dynamodb://",
			want: Config{Type: DynamoBackend},
		},
		{
			name: "memory",
			raw:  "memory://",
			want: Config{Type: MemoryBackend},
		},
		{name: "missing scheme", raw: "./data/fintrack.db", wantErr: true},
		{name: "unknown scheme", raw: "postgres://localhost/db", wantErr: true},
		{name: "sqlite without path", raw: "sqlite://", wantErr: true},
		{name: "sqlite in memory", raw: "sqlite://:memory:", wantErr: true},
		{name: "sqlite shared memory uri", raw: "sqlite://file::memory:?cache=shared", wantErr: true},
		{name: "bad dynamo endpoint", raw: "dynamodb://?endpoint=localhost:8000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseURL(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	factory := NewFactory(nil)
	ctx := context.Background()

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLitePath: filepath.Join(t.TempDir(), "app.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := factory.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			if res.Store == nil || res.Cleanup == nil {
				t.Fatalf("incomplete result %+v", res)
			}
			if err := res.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
			if err := res.Cleanup(); err != nil {
				t.Fatalf("Cleanup: %v", err)
			}
		})
	}

	if _, err := factory.CreateBackend(ctx, Config{Type: "sheets"}); err == nil {
		t.Fatalf("expected error for unknown backend type")
	}
}

func TestCreateBackendLogsBackendType(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: "json"})

	res, err := NewFactory(logger).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry[log.FieldBackend] != "memory" || entry[log.FieldComponent] != log.ComponentBackend {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestCreateDynamoBackendIsLazy(t *testing.T) {
	// Nothing listens on this endpoint; creation must still succeed.
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:   DynamoBackend,
		Dynamo: dynamo.Config{Endpoint: "http://127.0.0.1:1"},
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()
}
