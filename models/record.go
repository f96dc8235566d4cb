package models

import "time"

// Record types and statuses. A record is either a top-level post or a
// comment attached to a parent record.
const (
	RecordTypePost    = "post"
	RecordTypeComment = "comment"
	RecordTypeRepost  = "repost"

	StatusPublish = "publish"
	StatusPending = "pending"
	StatusTrashed = "trashed"
	StatusBlocked = "blocked"
)

var RecordSchema = Schema{
	Table: "records",
	ID:    "id",
	Columns: []string{
		"id", "user", "parent", "affiliated_to", "title", "content",
		"created", "modified", "type", "status", "user_agent",
		"_likes", "_dislikes", "_comments", "_reposts",
	},
}

// Record is a snapshot of one records row. Parent is set for comments;
// AffiliatedTo optionally links a record to a topic.
type Record struct {
	Base

	ID           int64
	User         int64
	Parent       *int64
	AffiliatedTo *int64
	Title        string
	Content      string
	Created      time.Time
	Modified     time.Time
	Type         string
	Status       string
	UserAgent    string

	Likes    int64
	Dislikes int64
	Comments int64
	Reposts  int64
}

// RecordFromRow builds a Record from a scanned row. Fails with
// *OperationError when any schema column is absent.
func RecordFromRow(row Row) (*Record, error) {
	r := newReader(RecordSchema.Table, row)
	rec := &Record{
		ID:           r.id("id"),
		User:         r.integer("user"),
		Parent:       r.integerPtr("parent"),
		AffiliatedTo: r.integerPtr("affiliated_to"),
		Title:        r.str("title"),
		Content:      r.str("content"),
		Created:      r.tim("created"),
		Modified:     r.tim("modified"),
		Type:         r.str("type"),
		Status:       r.str("status"),
		UserAgent:    r.str("user_agent"),
		Likes:        r.integer("_likes"),
		Dislikes:     r.integer("_dislikes"),
		Comments:     r.integer("_comments"),
		Reposts:      r.integer("_reposts"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	rec.bind(row)
	return rec, nil
}

func (rec *Record) PrimaryKey() int64 { return rec.ID }

// Published reports whether the record is publicly visible.
func (rec *Record) Published() bool { return rec.Status == StatusPublish }
