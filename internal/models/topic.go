package models

// Topic is a static taxonomy tag, many-to-many with Snapshot via a join
// table (snapshot_topics).
type Topic struct {
	ID    int64  `db:"id" json:"id"`
	Slug  string `db:"slug" json:"slug"`
	Label string `db:"label" json:"label"`
}
