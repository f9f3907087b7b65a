package main

import (
	"strings"
	"testing"

	"github.com/yungbote/artisan-backend/internal/app"
)

func TestRequirePersistentRecords(t *testing.T) {
	err := requirePersistentRecords(app.Config{RecordStore: app.RecordStoreMemory})
	if err == nil || !strings.Contains(err.Error(), "RECORD_STORE") {
		t.Fatalf("memory store: want RECORD_STORE error got=%v", err)
	}
	for _, store := range []string{app.RecordStoreSQLite, app.RecordStorePostgres} {
		if err := requirePersistentRecords(app.Config{RecordStore: store}); err != nil {
			t.Fatalf("%s store: %v", store, err)
		}
	}
}

func TestParseOrigin(t *testing.T) {
	origin, err := parseOrigin("https://shop.example.app/some/path")
	if err != nil {
		t.Fatalf("parseOrigin: %v", err)
	}
	if origin.Scheme != "https" || origin.Host != "shop.example.app" {
		t.Fatalf("origin: got=%+v", origin)
	}
	for _, raw := range []string{"shop.example.app", "javascript://evil/x", "https://"} {
		if _, err := parseOrigin(raw); err == nil {
			t.Fatalf("parseOrigin(%q): want error", raw)
		}
	}
}
