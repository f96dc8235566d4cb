package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
)

// RelationshipManager runs one kind of user-to-entity edge: follows, likes,
// dislikes. (type, subject, object) is unique, so connecting twice is a
// classified duplicate and disconnecting a missing edge is a classified
// absence — both are ordinary user-visible outcomes, not invariant breaks.
type RelationshipManager struct {
	typ string
	m   *Manager[*models.Relationship]
}

// NewRelationshipManager builds a manager bound to one edge type.
func NewRelationshipManager(typ string) *RelationshipManager {
	return &RelationshipManager{
		typ: typ,
		m:   NewManager(models.RelationshipSchema, models.RelationshipFromRow),
	}
}

// Type returns the edge type this manager is bound to.
func (rm *RelationshipManager) Type() string { return rm.typ }

// Connect creates the subject→object edge and returns its snapshot.
// An existing edge fails with DuplicateRelationshipError. Equal identifiers
// are not rejected here: subject and object live in different id spaces for
// reaction edges, so self-edge rules belong to the operations that know the
// edge semantics (Follow refuses them, Like does not).
func (rm *RelationshipManager) Connect(ctx context.Context, s *db.Session, subject, object int64) (*models.Relationship, error) {
	id, err := rm.m.Insert(ctx, s, map[string]any{
		"type":    rm.typ,
		"subject": subject,
		"object":  object,
		"created": now(),
	})
	if db.IsDuplicateKey(err) {
		return nil, &DuplicateRelationshipError{Type: rm.typ, Subject: subject, Object: object}
	}
	if err != nil {
		return nil, err
	}
	rel, err := rm.m.FetchDirectly(ctx, s, id, "id", db.LockNone)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, models.Operationf("connect", "relationship %d not found on re-read", id)
	}
	return rel, nil
}

// Disconnect removes the subject→object edge. A missing edge fails with
// RelationshipNonexistenceError.
func (rm *RelationshipManager) Disconnect(ctx context.Context, s *db.Session, subject, object int64) error {
	d := s.Dialect()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3",
		d.QuoteIdent(rm.m.schema.Table),
		d.QuoteIdent("type"), d.QuoteIdent("subject"), d.QuoteIdent("object"))
	res, err := s.Exec(ctx, d.Rebind(query), rm.typ, subject, object)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &RelationshipNonexistenceError{Type: rm.typ, Subject: subject, Object: object}
	}
	return nil
}

// Edge fetches the subject→object edge with the requested lock, or nil when
// it does not exist.
func (rm *RelationshipManager) Edge(ctx context.Context, s *db.Session, subject, object int64, lock db.LockMode) (*models.Relationship, error) {
	return rm.m.FetchBy(ctx, s,
		[]string{"type", "subject", "object"},
		[]any{rm.typ, subject, object}, lock)
}

// CountFrom returns the number of edges leaving subject.
func (rm *RelationshipManager) CountFrom(ctx context.Context, s *db.Session, subject int64) (int64, error) {
	return rm.countBy(ctx, s, "subject", subject)
}

// CountTo returns the number of edges arriving at object.
func (rm *RelationshipManager) CountTo(ctx context.Context, s *db.Session, object int64) (int64, error) {
	return rm.countBy(ctx, s, "object", object)
}

func (rm *RelationshipManager) countBy(ctx context.Context, s *db.Session, field string, id int64) (int64, error) {
	d := s.Dialect()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1 AND %s = $2",
		d.QuoteIdent(rm.m.schema.Table), d.QuoteIdent("type"), d.QuoteIdent(field))
	var n int64
	if err := s.QueryRow(ctx, d.Rebind(query), rm.typ, id).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
