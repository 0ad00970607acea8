package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeaderSchemaVersion tracks the schema version for header documents.
const HeaderSchemaVersion = 1

// Header summarises a finished bundle for catalogue tooling.
type Header struct {
	SchemaVersion int    `json:"schema_version"`
	SessionID     string `json:"session_id"`
	Endpoint      string `json:"endpoint,omitempty"`
	Events        uint64 `json:"events"`
	Frames        uint64 `json:"frames"`
	ClosedAt      string `json:"closed_at,omitempty"`
	FilePointer   string `json:"file_pointer"`
}

// Validate ensures the header can locate its bundle.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	if strings.TrimSpace(h.SessionID) == "" {
		return fmt.Errorf("session_id must not be empty")
	}
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists header to path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and validates a header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
