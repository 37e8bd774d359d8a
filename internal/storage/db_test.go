package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	missing, err := db.GetMetadata(ctx, "feed.last_full_sync")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("missing key returned %q", *missing)
	}

	if err := db.SetMetadata(ctx, "feed.last_full_sync", "2026-08-30T10:00:00Z"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMetadata(ctx, "feed.last_full_sync")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != "2026-08-30T10:00:00Z" {
		t.Fatalf("got=%v", got)
	}

	// Keys are upserted, not duplicated.
	if err := db.SetMetadata(ctx, "feed.last_full_sync", "2026-08-31T09:30:00Z"); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetMetadata(ctx, "feed.last_full_sync")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != "2026-08-31T09:30:00Z" {
		t.Fatalf("got=%v", got)
	}
}
