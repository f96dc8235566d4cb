package models

// Metadata value type tags. Scalar values are stored as their text form;
// everything else is opaque-serialized by the repo layer.
const (
	MetaString  = "string"
	MetaInteger = "integer"
	MetaFloat   = "float"
	MetaBoolean = "boolean"
	MetaOpaque  = "opaque"
)

// Metadata groups with well-known meanings. Arbitrary group names are
// allowed; "system" with a null affiliation holds singleton settings.
const (
	MetaGroupSystem = "system"
	MetaGroupUser   = "user"
)

// The grouping column is named grp: "group" is a reserved word in every
// supported dialect.
var MetadataSchema = Schema{
	Table: "metadata",
	ID:    "id",
	Columns: []string{
		"id", "grp", "affiliated_to", "name", "value", "type",
	},
}

// Metadata is a snapshot of one typed key/value row.
// (grp, affiliated_to, name) is unique.
type Metadata struct {
	Base

	ID           int64
	Group        string
	AffiliatedTo *int64
	Name         string
	Value        string
	Type         string
}

// MetadataFromRow builds a Metadata entry from a scanned row.
func MetadataFromRow(row Row) (*Metadata, error) {
	r := newReader(MetadataSchema.Table, row)
	m := &Metadata{
		ID:           r.id("id"),
		Group:        r.str("grp"),
		AffiliatedTo: r.integerPtr("affiliated_to"),
		Name:         r.str("name"),
		Value:        r.str("value"),
		Type:         r.str("type"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	m.bind(row)
	return m, nil
}

func (m *Metadata) PrimaryKey() int64 { return m.ID }
