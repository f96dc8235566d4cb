package repo

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
)

// MetadataManager runs the typed key/value store for one group. Scalars are
// stored as their text form under a type tag; everything else is msgpack-
// serialized and base64-wrapped under the opaque tag, so the value column
// stays plain text in every engine.
type MetadataManager struct {
	group string
	m     *Manager[*models.Metadata]
}

// NewMetadataManager builds a manager bound to one metadata group.
func NewMetadataManager(group string) *MetadataManager {
	return &MetadataManager{
		group: group,
		m:     NewManager(models.MetadataSchema, models.MetadataFromRow),
	}
}

// Group returns the group this manager is bound to.
func (mm *MetadataManager) Group() string { return mm.group }

// ─────────────────────────────────────────────────────────────────────────────
// Value encoding
// ─────────────────────────────────────────────────────────────────────────────

func encodeValue(v any) (text, tag string, err error) {
	switch x := v.(type) {
	case string:
		return x, models.MetaString, nil
	case bool:
		return strconv.FormatBool(x), models.MetaBoolean, nil
	case int:
		return strconv.FormatInt(int64(x), 10), models.MetaInteger, nil
	case int32:
		return strconv.FormatInt(int64(x), 10), models.MetaInteger, nil
	case int64:
		return strconv.FormatInt(x, 10), models.MetaInteger, nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), models.MetaFloat, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), models.MetaFloat, nil
	default:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return "", "", err
		}
		return base64.StdEncoding.EncodeToString(b), models.MetaOpaque, nil
	}
}

func decodeValue(entry *models.Metadata) (any, error) {
	switch entry.Type {
	case models.MetaString:
		return entry.Value, nil
	case models.MetaBoolean:
		return strconv.ParseBool(entry.Value)
	case models.MetaInteger:
		return strconv.ParseInt(entry.Value, 10, 64)
	case models.MetaFloat:
		return strconv.ParseFloat(entry.Value, 64)
	case models.MetaOpaque:
		b, err := base64.StdEncoding.DecodeString(entry.Value)
		if err != nil {
			return nil, err
		}
		var v any
		if err := msgpack.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, models.Operationf("metadata", "entry %d carries unknown type tag %q", entry.ID, entry.Type)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

// Entry fetches the raw metadata row for (group, affiliatedTo, name) with
// the requested lock, or nil when absent.
func (mm *MetadataManager) Entry(ctx context.Context, s *db.Session, name string, affiliatedTo *int64, lock db.LockMode) (*models.Metadata, error) {
	var aff any
	if affiliatedTo != nil {
		aff = *affiliatedTo
	}
	return mm.m.FetchBy(ctx, s,
		[]string{"grp", "affiliated_to", "name"},
		[]any{mm.group, aff, name}, lock)
}

// Get returns the decoded value for (group, affiliatedTo, name), or nil
// when the entry does not exist.
func (mm *MetadataManager) Get(ctx context.Context, s *db.Session, name string, affiliatedTo *int64) (any, error) {
	entry, err := mm.Entry(ctx, s, name, affiliatedTo, db.LockNone)
	if err != nil || entry == nil {
		return nil, err
	}
	return decodeValue(entry)
}

// Add creates the entry, failing with DuplicateColumnError on name when the
// triple already exists.
func (mm *MetadataManager) Add(ctx context.Context, s *db.Session, name string, value any, affiliatedTo *int64) (*models.Metadata, error) {
	text, tag, err := encodeValue(value)
	if err != nil {
		return nil, err
	}
	var aff any
	if affiliatedTo != nil {
		aff = *affiliatedTo
	}
	entry, err := mm.m.Create(ctx, s, map[string]any{
		"grp":           mm.group,
		"affiliated_to": aff,
		"name":          name,
		"value":         text,
		"type":          tag,
	})
	if db.IsDuplicateKey(err) {
		return nil, &DuplicateColumnError{Table: models.MetadataSchema.Table, Column: "name"}
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SetLocked rewrites the value and type tag of an entry the caller holds a
// write lock on.
func (mm *MetadataManager) SetLocked(ctx context.Context, s *db.Session, entry *models.Metadata, value any) error {
	text, tag, err := encodeValue(value)
	if err != nil {
		return err
	}
	return mm.m.UpdateLocked(ctx, s, entry, map[string]any{
		"value": text,
		"type":  tag,
	})
}

// Set upserts the entry inside one transaction: the existing row is locked
// and rewritten, or a new row is created.
func (mm *MetadataManager) Set(ctx context.Context, s *db.Session, name string, value any, affiliatedTo *int64) error {
	return s.InTransaction(ctx, func() error {
		entry, err := mm.Entry(ctx, s, name, affiliatedTo, db.LockUpdate)
		if err != nil {
			return err
		}
		if entry != nil {
			return mm.SetLocked(ctx, s, entry, value)
		}
		_, err = mm.Add(ctx, s, name, value, affiliatedTo)
		return err
	})
}

// Delete removes the entry; a missing entry is not an error.
func (mm *MetadataManager) Delete(ctx context.Context, s *db.Session, name string, affiliatedTo *int64) error {
	return s.InTransaction(ctx, func() error {
		entry, err := mm.Entry(ctx, s, name, affiliatedTo, db.LockUpdate)
		if err != nil || entry == nil {
			return err
		}
		return mm.m.DeleteLocked(ctx, s, entry)
	})
}
