package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON means no decodable JSON payload was found in model output.
var ErrNoJSON = errors.New("no JSON payload in model output")

var (
	fencedJSONRe = regexp.MustCompile("(?is)```json\\s*(.+?)\\s*```")
	bareValueRe  = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// DecodeLoose unmarshals model output into v. It tries the raw text
// first, then the contents of a ```json fence, then the outermost
// braced or bracketed region. Anything else fails with ErrNoJSON.
// Malformed payloads are never repaired.
func DecodeLoose(raw string, v interface{}) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
		return ErrNoJSON
	}
	if m := bareValueRe.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}
