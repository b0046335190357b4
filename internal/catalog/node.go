// Package catalog models the remote TIS tree node shape and the handful
// of conversions (ticks, JSON-in-string attributes) every downstream
// package needs.
package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Node is a vertex of the remote catalog tree, decoded from the raw TCI
// JSON response. Attributes are kept as raw strings; callers that need a
// typed value go through the Attr* helpers below.
type Node struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	TypeTag     string            `json:"typeTag"`
	NameTag     string            `json:"nameTag"`
	GroupTag    string            `json:"groupTag"`
	Created     string            `json:"created"`
	Attrs       map[string]string `json:"-"`
	Children    []Node            `json:"children,omitempty"`
	HasChildren bool              `json:"-"`
}

// rawNode mirrors the wire shape: attributes travel as an unordered list
// of {name, value} pairs rather than a JSON object.
type rawNode struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	TypeTag    string          `json:"typeTag"`
	NameTag    string          `json:"nameTag"`
	GroupTag   string          `json:"groupTag"`
	Created    json.RawMessage `json:"created"`
	Attributes []rawAttribute  `json:"attributes"`
	Children   []rawNode       `json:"children"`
}

type rawAttribute struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Decode parses one raw TCI JSON node (and its subtree) into a Node.
func Decode(data []byte) (*Node, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	n := decodeRaw(raw)
	return &n, nil
}

func decodeRaw(raw rawNode) Node {
	attrs := make(map[string]string, len(raw.Attributes))
	for _, a := range raw.Attributes {
		attrs[a.Name] = rawValueToString(a.Value)
	}

	n := Node{
		ID:          raw.ID,
		Name:        raw.Name,
		TypeTag:     raw.TypeTag,
		NameTag:     raw.NameTag,
		GroupTag:    raw.GroupTag,
		Created:     strings.Trim(string(raw.Created), `"`),
		Attrs:       attrs,
		HasChildren: raw.Children != nil,
	}
	if raw.Children != nil {
		n.Children = make([]Node, 0, len(raw.Children))
		for _, c := range raw.Children {
			n.Children = append(n.Children, decodeRaw(c))
		}
	}
	return n
}

func rawValueToString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.Trim(string(v), `"`)
}

// Attr returns an attribute's raw string value and whether it was present.
func (n Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// AttrBool parses an attribute as a boolean; absence or a malformed value
// yields (false, false).
func (n Node) AttrBool(name string) (bool, bool) {
	v, ok := n.Attrs[name]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// ticksPerSecond is the number of ticks (100ns units) in one second.
const ticksPerSecond = 10_000_000

// unixSecondsFromTicks converts a .NET/COM-style "ticks since year 1" value
// into Unix seconds; 62,135,596,800 is the number of seconds between year 1
// and the Unix epoch.
func unixSecondsFromTicks(ticks int64) int64 {
	return ticks/ticksPerSecond - 62_135_596_800
}

// ParseInstant parses a node's "created" (or any ticks/ISO-8601 timestamp
// string) into a UTC time.Time. A value containing "T" or "-" is treated
// as already ISO-8601; otherwise it is parsed as a ticks integer.
func ParseInstant(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if strings.ContainsAny(raw, "T-") {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), true
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	}
	ticks, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(unixSecondsFromTicks(ticks), 0).UTC(), true
}

// FormatInstant renders t using the given Go reference-time layout. An
// empty layout falls back to "02-01-2006 15:04:05" (DD-MM-YYYY HH:MM:SS).
func FormatInstant(t time.Time, layout string) string {
	if layout == "" {
		layout = "02-01-2006 15:04:05"
	}
	return t.UTC().Format(layout)
}
