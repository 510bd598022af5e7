package models

// DuplicateGroup is a cluster of entities believed to represent the same
// real-world contact. The primary is the oldest member and survives a merge.
type DuplicateGroup struct {
	Primary      Entity   `json:"primary"`
	Duplicates   []Entity `json:"duplicates"`
	MatchReasons []string `json:"match_reasons"`
}

// DuplicateMatch is a single existing entity that resembles a prospective
// contact, with the fields that matched.
type DuplicateMatch struct {
	Entity    Entity   `json:"entity"`
	Score     float64  `json:"score"`
	MatchedOn []string `json:"matched_on"`
}

// AutoMergeSummary reports the outcome of an auto-merge pass.
type AutoMergeSummary struct {
	MergedGroups           int `json:"merged_groups"`
	FailedGroups           int `json:"failed_groups"`
	TotalDuplicatesRemoved int `json:"total_duplicates_removed"`
}

// MergeOptions controls which collections a pairwise merge migrates.
type MergeOptions struct {
	Identifiers  bool `json:"identifiers"`
	Tags         bool `json:"tags"`
	Interactions bool `json:"interactions"`
}

// DefaultMergeOptions migrates everything.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{Identifiers: true, Tags: true, Interactions: true}
}

// MergeTransferSummary reports how many rows a pairwise merge moved.
type MergeTransferSummary struct {
	IdentifiersTransferred  int `json:"identifiers_transferred"`
	TagsTransferred         int `json:"tags_transferred"`
	InteractionsTransferred int `json:"interactions_transferred"`
}
