package models

import "time"

var TopicSchema = Schema{
	Table: "topics",
	ID:    "id",
	Columns: []string{
		"id", "title", "slug", "created", "modified", "_records",
	},
}

// Topic is a snapshot of one topics row. slug is unique; records attach to
// a topic via their affiliated_to column.
type Topic struct {
	Base

	ID       int64
	Title    string
	Slug     string
	Created  time.Time
	Modified time.Time

	Records int64
}

// TopicFromRow builds a Topic from a scanned row.
func TopicFromRow(row Row) (*Topic, error) {
	r := newReader(TopicSchema.Table, row)
	tp := &Topic{
		ID:       r.id("id"),
		Title:    r.str("title"),
		Slug:     r.str("slug"),
		Created:  r.tim("created"),
		Modified: r.tim("modified"),
		Records:  r.integer("_records"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	tp.bind(row)
	return tp, nil
}

func (tp *Topic) PrimaryKey() int64 { return tp.ID }
