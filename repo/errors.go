package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Domain errors
// ─────────────────────────────────────────────────────────────────────────────
//
// The managers convert the storage layer's duplicate-key failures into
// precise domain errors by inspecting WHICH constraint was violated. These
// are the errors meant to reach the HTTP boundary as structured user
// feedback; everything else (generic driver failures, invariant breaks)
// propagates unchanged.

// DuplicateColumnError reports a unique-constraint violation on a named
// column: username already taken, image file already uploaded, and so on.
type DuplicateColumnError struct {
	Table  string
	Column string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("socialtoolkit/repo: duplicate value for unique column %s.%s", e.Table, e.Column)
}

// DuplicateRelationshipError reports that the edge being connected already
// exists for (type, subject, object).
type DuplicateRelationshipError struct {
	Type    string
	Subject int64
	Object  int64
}

func (e *DuplicateRelationshipError) Error() string {
	return fmt.Sprintf("socialtoolkit/repo: relationship %q %d→%d already exists", e.Type, e.Subject, e.Object)
}

// RelationshipNonexistenceError reports a disconnect of an edge that does
// not exist.
type RelationshipNonexistenceError struct {
	Type    string
	Subject int64
	Object  int64
}

func (e *RelationshipNonexistenceError) Error() string {
	return fmt.Sprintf("socialtoolkit/repo: relationship %q %d→%d does not exist", e.Type, e.Subject, e.Object)
}

// DuplicateCaseError reports a second case with the same (type, tag) —
// e.g. the same record reported twice.
type DuplicateCaseError struct {
	Type string
	Tag  string
}

func (e *DuplicateCaseError) Error() string {
	return fmt.Sprintf("socialtoolkit/repo: case (%s, %s) already exists", e.Type, e.Tag)
}

// Business-state failures raised while holding locks.
var (
	// ErrSelfRelationship rejects edges from a user to themselves.
	ErrSelfRelationship = errors.New("socialtoolkit/repo: subject and object must differ")

	// ErrRecordNotPublic rejects actions against unpublished records.
	ErrRecordNotPublic = errors.New("socialtoolkit/repo: record is not published")

	// ErrNotCommentable rejects comments on records that are not posts.
	ErrNotCommentable = errors.New("socialtoolkit/repo: record cannot be commented on")

	// ErrOwnRecord rejects reporting one's own record.
	ErrOwnRecord = errors.New("socialtoolkit/repo: cannot report your own record")

	// ErrForeignImage rejects using an image owned by another user.
	ErrForeignImage = errors.New("socialtoolkit/repo: image belongs to another user")

	// ErrForeignRecord rejects binding an upload to another user's record.
	ErrForeignRecord = errors.New("socialtoolkit/repo: record belongs to another user")

	// ErrImageNotActive rejects using an orphaned or blocked image.
	ErrImageNotActive = errors.New("socialtoolkit/repo: image is not active")
)

// ─────────────────────────────────────────────────────────────────────────────
// Duplicate-key classification
// ─────────────────────────────────────────────────────────────────────────────

// uniqueColumn resolves a duplicate-key error against a table schema to the
// violated column name. Single-column keys only; composite keys (edge and
// metadata uniqueness) are classified by their owning manager instead.
//
// Accepted constraint spellings, by driver:
//
//	sqlite    users.username
//	mysql     users.username  (or a bare key name on older servers)
//	postgres  users_username_key
func uniqueColumn(err error, schema models.Schema) (string, bool) {
	if !db.IsDuplicateKey(err) {
		return "", false
	}
	name := db.ConstraintName(err)
	if name == "" || strings.Contains(name, ",") {
		return "", false
	}
	col := name
	if i := strings.IndexByte(col, '.'); i >= 0 {
		if col[:i] != schema.Table {
			return "", false
		}
		col = col[i+1:]
	}
	col = strings.TrimPrefix(col, schema.Table+"_")
	for _, suffix := range []string{"_key", "_idx", "_uq"} {
		col = strings.TrimSuffix(col, suffix)
	}
	if schema.Has(col) {
		return col, true
	}
	return "", false
}
