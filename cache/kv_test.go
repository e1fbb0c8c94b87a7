package cache

import (
	"path/filepath"
	"testing"

	"github.com/scipunch/rssreader/config"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		conf    config.StorageConfig
		check   func(Backend) bool
		wantErr bool
	}{
		{
			name:  "sqlite",
			conf:  config.StorageConfig{Driver: config.SQLite, DatabasePath: filepath.Join(t.TempDir(), "feeds.db")},
			check: func(b Backend) bool { _, ok := b.(*SQLiteKV); return ok },
		},
		{
			name:  "empty driver is sqlite",
			conf:  config.StorageConfig{DatabasePath: filepath.Join(t.TempDir(), "feeds.db")},
			check: func(b Backend) bool { _, ok := b.(*SQLiteKV); return ok },
		},
		{
			name:  "memory",
			conf:  config.StorageConfig{Driver: config.Memory},
			check: func(b Backend) bool { _, ok := b.(*MemoryKV); return ok },
		},
		{
			name:    "unknown",
			conf:    config.StorageConfig{Driver: "etcd"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := Open(tt.conf, config.Credentials{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer backend.Close()

			if !tt.check(backend) {
				t.Errorf("Unexpected backend type %T", backend)
			}
			if err := backend.Set("k", "v"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if v, found, err := backend.Get("k"); err != nil || !found || v != "v" {
				t.Errorf("Expected v, got %q found=%v err=%v", v, found, err)
			}
		})
	}
}
