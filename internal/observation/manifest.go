package observation

import (
	"fmt"
	"strings"
)

// CheckMode selects how group completeness is verified.
type CheckMode string

const (
	// CheckExtensions requires the member extensions to equal the required set exactly.
	CheckExtensions CheckMode = "extensions"
	// CheckCount only compares the member count with the number of required extensions.
	CheckCount CheckMode = "count"
)

// ParseCheckMode accepts "" as the default mode.
func ParseCheckMode(s string) (CheckMode, error) {
	switch CheckMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CheckExtensions:
		return CheckExtensions, nil
	case CheckCount:
		return CheckCount, nil
	default:
		return "", fmt.Errorf("unknown manifest check %q", s)
	}
}

// Manifest is the set of file types that make up one Observation.
type Manifest struct {
	Required []string
	Mode     CheckMode
}

// NormalizeExtensions lower-cases extensions, adds the leading dot and drops blanks and duplicates,
// keeping first-seen order. A list with nothing left in it means DefaultExtensions.
func NormalizeExtensions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	norm := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		norm = append(norm, e)
	}
	if len(norm) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return norm
}

// NewManifest normalizes the required extensions with NormalizeExtensions.
func NewManifest(required []string, mode CheckMode) Manifest {
	if mode == "" {
		mode = CheckExtensions
	}
	return Manifest{Required: NormalizeExtensions(required), Mode: mode}
}

// Admits reports whether a file with this extension can be part of an Observation at all.
func (m Manifest) Admits(ext string) bool {
	ext = strings.ToLower(ext)
	for _, r := range m.Required {
		if r == ext {
			return true
		}
	}
	return false
}

// Complete reports whether g holds exactly the required files.
func (m Manifest) Complete(g Group) bool {
	if len(g.Members) != len(m.Required) {
		return false
	}
	if m.Mode == CheckCount {
		return true
	}
	present := make(map[string]struct{}, len(g.Members))
	for _, member := range g.Members {
		if _, dup := present[member.Extension]; dup {
			return false
		}
		present[member.Extension] = struct{}{}
	}
	for _, r := range m.Required {
		if _, ok := present[r]; !ok {
			return false
		}
	}
	return true
}

// Missing lists the required extensions absent from g, in manifest order.
func (m Manifest) Missing(g Group) []string {
	present := make(map[string]struct{}, len(g.Members))
	for _, member := range g.Members {
		present[member.Extension] = struct{}{}
	}
	var out []string
	for _, r := range m.Required {
		if _, ok := present[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}
