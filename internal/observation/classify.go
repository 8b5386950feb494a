package observation

// Disposition is the outcome of classifying one record against its group.
type Disposition int

const (
	// Archive: the group is complete and the file is stored and ingested.
	Archive Disposition = iota
	// Retire: the group is complete but the file is a sentinel, so it is reported and never stored.
	Retire
	// Reject: the group is incomplete, so every member fails.
	Reject
)

func (d Disposition) String() string {
	switch d {
	case Archive:
		return "archive"
	case Retire:
		return "retire"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Classified pairs a record with its disposition.
type Classified struct {
	Record      FileRecord
	Disposition Disposition
}

// Classify assigns a disposition to every record, preserving input order.
func Classify(records []FileRecord, m Manifest) []Classified {
	complete := make(map[string]bool)
	for _, g := range GroupRecords(records) {
		complete[g.ID] = m.Complete(g)
	}
	out := make([]Classified, 0, len(records))
	for _, r := range records {
		d := Archive
		switch {
		case !complete[r.GroupID]:
			d = Reject
		case !r.Archived():
			d = Retire
		}
		out = append(out, Classified{Record: r, Disposition: d})
	}
	return out
}

// RejectIncomplete splits work into members of complete groups and members of incomplete ones.
// Sentinels are kept here: they count toward completeness and are only removed afterwards by
// SplitSentinels.
func RejectIncomplete(work []FileRecord, m Manifest) (kept, rejected []FileRecord) {
	for _, c := range Classify(work, m) {
		if c.Disposition == Reject {
			rejected = append(rejected, c.Record)
			continue
		}
		kept = append(kept, c.Record)
	}
	return kept, rejected
}

// SplitSentinels separates archivable records from sentinels. It must only see work that already
// went through RejectIncomplete.
func SplitSentinels(work []FileRecord) (archivable, sentinels []FileRecord) {
	for _, r := range work {
		if r.Archived() {
			archivable = append(archivable, r)
			continue
		}
		sentinels = append(sentinels, r)
	}
	return archivable, sentinels
}
