package extract

import (
	"encoding/json"
	"time"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// executionEntry mirrors one element of the "execution" attribute's
// JSON-encoded dependency list: {"dependency": "...", "version": ["..."]}.
type executionEntry struct {
	Dependency string   `json:"dependency"`
	Version    []string `json:"version"`
}

// firstDependencyVersion parses raw (a JSON-encoded list of dependency
// entries) and returns version[0] of the first entry whose dependency
// matches want. Malformed JSON or a missing match yields "", never an
// error.
func firstDependencyVersion(raw, want string) string {
	var entries []executionEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Dependency == want && len(e.Version) > 0 {
			return e.Version[0]
		}
	}
	return ""
}
