package observation

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultExtensions are the seven file types BRITE-Constellation produces per Observation.
var DefaultExtensions = []string{".avedb", ".freq0db", ".lst", ".md5", ".ndatdb", ".orig", ".rlogdb"}

var sentinelExtensions = map[string]struct{}{
	".lst": {},
	".md5": {},
}

// FileRecord is one physical file discovered by a listing.
type FileRecord struct {
	Path      string
	Name      string
	Extension string
	GroupID   string
	ModTime   time.Time
}

// NewFileRecord derives the record identity from the base name of path.
func NewFileRecord(path string, modTime time.Time) FileRecord {
	name := filepath.Base(path)
	return FileRecord{
		Path:      path,
		Name:      name,
		Extension: strings.ToLower(filepath.Ext(name)),
		GroupID:   GroupID(name),
		ModTime:   modTime,
	}
}

// GroupID strips the final extension from a file name.
func GroupID(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

// IsSentinel reports whether a file with this name is used only for completeness checks.
func IsSentinel(fileName string) bool {
	_, ok := sentinelExtensions[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// IsArchived is the inverse of IsSentinel.
func IsArchived(fileName string) bool { return !IsSentinel(fileName) }

// Archived reports whether the record is stored and ingested once its group is complete.
func (r FileRecord) Archived() bool { return IsArchived(r.Name) }

// Group is the transient set of records sharing a GroupID.
type Group struct {
	ID      string
	Members []FileRecord
}

// Extensions returns the member extensions in member order.
func (g Group) Extensions() []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, m.Extension)
	}
	return out
}

// GroupRecords partitions records by GroupID. Groups come back in order of first appearance and
// members keep their input order.
func GroupRecords(records []FileRecord) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, r := range records {
		i, ok := index[r.GroupID]
		if !ok {
			i = len(groups)
			index[r.GroupID] = i
			groups = append(groups, Group{ID: r.GroupID})
		}
		groups[i].Members = append(groups[i].Members, r)
	}
	return groups
}
