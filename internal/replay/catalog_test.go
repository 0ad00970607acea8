package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func recordSession(t *testing.T, root, label, id string, created time.Time) *Writer {
	t.Helper()
	writer, _, err := NewWriter(root, label, id, "ws://localhost:8000/ws/simulation", func() time.Time { return created })
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writer.AppendEvent(EventStatus, []byte(`{"status":"open"}`)); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return writer
}

func TestCatalogListsBundlesOldestFirst(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	recordSession(t, root, "late", "session-b", base.Add(time.Hour))
	recordSession(t, root, "early", "session-a", base.Add(500*time.Millisecond))
	unfinished := recordSession(t, root, "first", "session-0", base)
	if err := os.Remove(filepath.Join(unfinished.Directory(), headerFile)); err != nil {
		t.Fatalf("Remove header: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := Catalog(root)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected three bundles, got %d", len(entries))
	}
	ids := []string{entries[0].Manifest.SessionID, entries[1].Manifest.SessionID, entries[2].Manifest.SessionID}
	if ids[0] != "session-0" || ids[1] != "session-a" || ids[2] != "session-b" {
		t.Fatalf("expected creation order, got %v", ids)
	}
	if entries[0].Closed() {
		t.Fatalf("a bundle without header must be reported as unfinished")
	}
	if !entries[1].Closed() || entries[1].Header.Events != 1 {
		t.Fatalf("expected closed bundle with one event, got %+v", entries[1].Header)
	}
	if entries[2].Dir != filepath.Join(root, "late-20240710T130000Z") {
		t.Fatalf("unexpected bundle dir %q", entries[2].Dir)
	}
}

func TestCatalogRejectsUnknownManifestVersion(t *testing.T) {
	root := t.TempDir()
	writer := recordSession(t, root, "old", "session-old", time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))
	path := filepath.Join(writer.Directory(), manifestFile)
	data, err := json.Marshal(Manifest{Version: ManifestVersion + 1, SessionID: "session-old"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Catalog(root); err == nil {
		t.Fatalf("expected an unknown manifest version to fail the listing")
	}
}

func TestCatalogRejectsMismatchedHeader(t *testing.T) {
	root := t.TempDir()
	writer := recordSession(t, root, "swap", "session-one", time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC))
	header := Header{SchemaVersion: HeaderSchemaVersion, SessionID: "session-two", FilePointer: manifestFile}
	if err := WriteHeader(filepath.Join(writer.Directory(), headerFile), header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if _, err := Catalog(root); err == nil {
		t.Fatalf("expected a header from another session to fail the listing")
	}
}

func TestCatalogRejectsBadRoots(t *testing.T) {
	if _, err := Catalog("  "); err == nil {
		t.Fatalf("expected empty root to fail")
	}
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Catalog(file); err == nil {
		t.Fatalf("expected file root to fail")
	}
}
