package models

import "time"

// Image statuses.
const (
	ImageStatusActive  = "active"
	ImageStatusOrphan  = "orphan"
	ImageStatusBlocked = "blocked"
)

var ImageSchema = Schema{
	Table: "images",
	ID:    "id",
	Columns: []string{
		"id", "status", "file", "created", "modified",
		"user", "record", "position", "metadata",
	},
}

// Image is a snapshot of one images row. file is unique; Record is nil for
// uploads not (yet) attached to a record, e.g. avatars.
type Image struct {
	Base

	ID       int64
	Status   string
	File     string
	Created  time.Time
	Modified time.Time
	User     int64
	Record   *int64
	Position int64
	Metadata string
}

// ImageFromRow builds an Image from a scanned row.
func ImageFromRow(row Row) (*Image, error) {
	r := newReader(ImageSchema.Table, row)
	img := &Image{
		ID:       r.id("id"),
		Status:   r.str("status"),
		File:     r.str("file"),
		Created:  r.tim("created"),
		Modified: r.tim("modified"),
		User:     r.integer("user"),
		Record:   r.integerPtr("record"),
		Position: r.integer("position"),
		Metadata: r.str("metadata"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	img.bind(row)
	return img, nil
}

func (img *Image) PrimaryKey() int64 { return img.ID }
