package models

import "time"

// Case types and statuses. A case is a generic moderation/workflow item:
// content reports, unregistration requests, email-validation challenges.
const (
	CaseTypeReport          = "report"
	CaseTypeUnregister      = "unregister"
	CaseTypeEmailValidation = "email_validation"

	CaseStatusOpen      = "open"
	CaseStatusResolved  = "resolved"
	CaseStatusDismissed = "dismissed"
)

var CaseSchema = Schema{
	Table: "cases",
	ID:    "id",
	Columns: []string{
		"id", "user", "tag", "created", "modified", "type", "status", "metadata",
	},
}

// Case is a snapshot of one cases row. (type, tag) is unique, which is how
// "the same thing reported twice" is detected.
type Case struct {
	Base

	ID       int64
	User     int64
	Tag      string
	Created  time.Time
	Modified time.Time
	Type     string
	Status   string
	Metadata string
}

// CaseFromRow builds a Case from a scanned row.
func CaseFromRow(row Row) (*Case, error) {
	r := newReader(CaseSchema.Table, row)
	c := &Case{
		ID:       r.id("id"),
		User:     r.integer("user"),
		Tag:      r.str("tag"),
		Created:  r.tim("created"),
		Modified: r.tim("modified"),
		Type:     r.str("type"),
		Status:   r.str("status"),
		Metadata: r.str("metadata"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	c.bind(row)
	return c, nil
}

func (c *Case) PrimaryKey() int64 { return c.ID }
