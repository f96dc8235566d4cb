package models

import "time"

// Relationship type discriminators. All edge kinds share the single
// relationships table; separate manager instances carry the discriminator.
const (
	RelFollow  = "u"
	RelLike    = "l"
	RelDislike = "d"
)

var RelationshipSchema = Schema{
	Table: "relationships",
	ID:    "id",
	Columns: []string{
		"id", "type", "subject", "object", "created",
	},
}

// Relationship is a snapshot of one directed edge. (type, subject, object)
// is unique: the database key, not in-memory checks, is the source of
// truth for edge existence.
type Relationship struct {
	Base

	ID      int64
	Type    string
	Subject int64
	Object  int64
	Created time.Time
}

// RelationshipFromRow builds a Relationship from a scanned row.
func RelationshipFromRow(row Row) (*Relationship, error) {
	r := newReader(RelationshipSchema.Table, row)
	rel := &Relationship{
		ID:      r.id("id"),
		Type:    r.str("type"),
		Subject: r.integer("subject"),
		Object:  r.integer("object"),
		Created: r.tim("created"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	rel.bind(row)
	return rel, nil
}

func (rel *Relationship) PrimaryKey() int64 { return rel.ID }
