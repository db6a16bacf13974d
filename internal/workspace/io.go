package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"auspex/internal/logging"
)

var iolog = logging.GetLogger("workspace")

// WriteJSON marshals v with two-space indentation and writes it to path,
// creating parent directories as needed.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadJSON unmarshals the file at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("read %s: empty file", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WriteTextBestEffort writes supporting material (audit mirrors, prompt
// captures, metadata). Failures are logged and swallowed so they can
// never fail a pipeline stage.
func WriteTextBestEffort(path string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		iolog.WarnWithFields("best-effort write skipped",
			logging.Field("path", path),
			logging.Field("error", err.Error()),
		)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		iolog.WarnWithFields("best-effort write skipped",
			logging.Field("path", path),
			logging.Field("error", err.Error()),
		)
	}
}

// WriteJSONBestEffort is WriteTextBestEffort for JSON payloads.
func WriteJSONBestEffort(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		iolog.WarnWithFields("best-effort write skipped",
			logging.Field("path", path),
			logging.Field("error", err.Error()),
		)
		return
	}
	WriteTextBestEffort(path, append(data, '\n'))
}
