package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
)

// Social composes the entity managers into the multi-entity operations of
// the network. Every operation runs inside InTransaction on the caller's
// session and keeps the denormalized counters consistent with the edge and
// record tables by mutating both under row locks in a single transaction.
//
// Lock ordering, held throughout the package to avoid deadlocks across
// operations: users before records before topics before images; within
// users, the acting subject before the object/author.
type Social struct {
	Users   *Manager[*models.User]
	Records *Manager[*models.Record]
	Cases   *Manager[*models.Case]
	Topics  *Manager[*models.Topic]
	Images  *Manager[*models.Image]

	Follows  *RelationshipManager
	Likes    *RelationshipManager
	Dislikes *RelationshipManager

	UserMeta   *MetadataManager
	SystemMeta *MetadataManager
}

// NewSocial wires the full manager set.
func NewSocial() *Social {
	return &Social{
		Users:      NewManager(models.UserSchema, models.UserFromRow),
		Records:    NewManager(models.RecordSchema, models.RecordFromRow),
		Cases:      NewManager(models.CaseSchema, models.CaseFromRow),
		Topics:     NewManager(models.TopicSchema, models.TopicFromRow),
		Images:     NewManager(models.ImageSchema, models.ImageFromRow),
		Follows:    NewRelationshipManager(models.RelFollow),
		Likes:      NewRelationshipManager(models.RelLike),
		Dislikes:   NewRelationshipManager(models.RelDislike),
		UserMeta:   NewMetadataManager(models.MetaGroupUser),
		SystemMeta: NewMetadataManager(models.MetaGroupSystem),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Locked fetch helpers
// ─────────────────────────────────────────────────────────────────────────────

func (so *Social) lockUser(ctx context.Context, s *db.Session, id int64, lock db.LockMode) (*models.User, error) {
	u, err := so.Users.FetchDirectly(ctx, s, id, "id", lock)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, db.ErrNotFound)
	}
	return u, nil
}

func (so *Social) lockRecord(ctx context.Context, s *db.Session, id int64, lock db.LockMode) (*models.Record, error) {
	rec, err := so.Records.FetchDirectly(ctx, s, id, "id", lock)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("record %d: %w", id, db.ErrNotFound)
	}
	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Follow graph
// ─────────────────────────────────────────────────────────────────────────────

// Follow makes subject follow object: the edge plus subject._followings and
// object._followers move together or not at all. An existing edge fails
// with DuplicateRelationshipError and leaves both counters untouched.
func (so *Social) Follow(ctx context.Context, s *db.Session, subject, object int64) error {
	if subject == object {
		return ErrSelfRelationship
	}
	return s.InTransaction(ctx, func() error {
		sub, err := so.lockUser(ctx, s, subject, db.LockUpdate)
		if err != nil {
			return err
		}
		obj, err := so.lockUser(ctx, s, object, db.LockUpdate)
		if err != nil {
			return err
		}
		if _, err := so.Follows.Connect(ctx, s, subject, object); err != nil {
			return err
		}
		if err := so.Users.IncrementLockedField(ctx, s, sub, "_followings", 1); err != nil {
			return err
		}
		return so.Users.IncrementLockedField(ctx, s, obj, "_followers", 1)
	})
}

// Unfollow removes the follow edge and decrements both counters. A missing
// edge fails with RelationshipNonexistenceError.
func (so *Social) Unfollow(ctx context.Context, s *db.Session, subject, object int64) error {
	if subject == object {
		return ErrSelfRelationship
	}
	return s.InTransaction(ctx, func() error {
		sub, err := so.lockUser(ctx, s, subject, db.LockUpdate)
		if err != nil {
			return err
		}
		obj, err := so.lockUser(ctx, s, object, db.LockUpdate)
		if err != nil {
			return err
		}
		if err := so.Follows.Disconnect(ctx, s, subject, object); err != nil {
			return err
		}
		if err := so.Users.IncrementLockedField(ctx, s, sub, "_followings", -1); err != nil {
			return err
		}
		return so.Users.IncrementLockedField(ctx, s, obj, "_followers", -1)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Reactions
// ─────────────────────────────────────────────────────────────────────────────

// Like records user's like of a record. Liking a disliked record first
// withdraws the dislike, so the two reactions stay mutually exclusive. The
// record's _likes and its author's received _likes move with the edge.
func (so *Social) Like(ctx context.Context, s *db.Session, user, record int64) error {
	return s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		rec, err := so.lockRecord(ctx, s, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if !rec.Published() {
			return ErrRecordNotPublic
		}
		author, err := so.lockUser(ctx, s, rec.User, db.LockUpdate)
		if err != nil {
			return err
		}

		opposing, err := so.Dislikes.Edge(ctx, s, user, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if opposing != nil {
			if err := so.Dislikes.Disconnect(ctx, s, user, record); err != nil {
				return err
			}
			if err := so.Records.IncrementLockedField(ctx, s, rec, "_dislikes", -1); err != nil {
				return err
			}
		}

		if _, err := so.Likes.Connect(ctx, s, user, record); err != nil {
			return err
		}
		if err := so.Records.IncrementLockedField(ctx, s, rec, "_likes", 1); err != nil {
			return err
		}
		return so.Users.IncrementLockedField(ctx, s, author, "_likes", 1)
	})
}

// Unlike withdraws a like. A missing edge fails with
// RelationshipNonexistenceError.
func (so *Social) Unlike(ctx context.Context, s *db.Session, user, record int64) error {
	return s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		rec, err := so.lockRecord(ctx, s, record, db.LockUpdate)
		if err != nil {
			return err
		}
		author, err := so.lockUser(ctx, s, rec.User, db.LockUpdate)
		if err != nil {
			return err
		}
		if err := so.Likes.Disconnect(ctx, s, user, record); err != nil {
			return err
		}
		if err := so.Records.IncrementLockedField(ctx, s, rec, "_likes", -1); err != nil {
			return err
		}
		return so.Users.IncrementLockedField(ctx, s, author, "_likes", -1)
	})
}

// Dislike records user's dislike of a record, first withdrawing an existing
// like. Dislikes are counted on the record only; users carry no received
// dislike counter.
func (so *Social) Dislike(ctx context.Context, s *db.Session, user, record int64) error {
	return s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		rec, err := so.lockRecord(ctx, s, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if !rec.Published() {
			return ErrRecordNotPublic
		}
		author, err := so.lockUser(ctx, s, rec.User, db.LockUpdate)
		if err != nil {
			return err
		}

		opposing, err := so.Likes.Edge(ctx, s, user, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if opposing != nil {
			if err := so.Likes.Disconnect(ctx, s, user, record); err != nil {
				return err
			}
			if err := so.Records.IncrementLockedField(ctx, s, rec, "_likes", -1); err != nil {
				return err
			}
			if err := so.Users.IncrementLockedField(ctx, s, author, "_likes", -1); err != nil {
				return err
			}
		}

		if _, err := so.Dislikes.Connect(ctx, s, user, record); err != nil {
			return err
		}
		return so.Records.IncrementLockedField(ctx, s, rec, "_dislikes", 1)
	})
}

// Undislike withdraws a dislike. A missing edge fails with
// RelationshipNonexistenceError.
func (so *Social) Undislike(ctx context.Context, s *db.Session, user, record int64) error {
	return s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		rec, err := so.lockRecord(ctx, s, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if err := so.Dislikes.Disconnect(ctx, s, user, record); err != nil {
			return err
		}
		return so.Records.IncrementLockedField(ctx, s, rec, "_dislikes", -1)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// PostParams carries the caller-supplied fields of a new record.
type PostParams struct {
	Title     string
	Content   string
	UserAgent string
	Status    string // defaults to publish
}

// CreatePost creates a top-level post and increments the author's _posts,
// both inside one transaction.
func (so *Social) CreatePost(ctx context.Context, s *db.Session, user int64, p PostParams) (*models.Record, error) {
	status := p.Status
	if status == "" {
		status = models.StatusPublish
	}
	var rec *models.Record
	err := s.InTransaction(ctx, func() error {
		author, err := so.lockUser(ctx, s, user, db.LockUpdate)
		if err != nil {
			return err
		}
		stamp := now()
		rec, err = so.Records.Create(ctx, s, map[string]any{
			"user":       user,
			"parent":     nil,
			"title":      p.Title,
			"content":    p.Content,
			"created":    stamp,
			"modified":   stamp,
			"type":       models.RecordTypePost,
			"status":     status,
			"user_agent": p.UserAgent,
		})
		if err != nil {
			return err
		}
		return so.Users.IncrementLockedField(ctx, s, author, "_posts", 1)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Comment attaches a comment to a published post and increments the
// parent's _comments. Comments on comments and on unpublished records are
// rejected.
func (so *Social) Comment(ctx context.Context, s *db.Session, user, parent int64, p PostParams) (*models.Record, error) {
	status := p.Status
	if status == "" {
		status = models.StatusPublish
	}
	var rec *models.Record
	err := s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		par, err := so.lockRecord(ctx, s, parent, db.LockUpdate)
		if err != nil {
			return err
		}
		if par.Type != models.RecordTypePost {
			return ErrNotCommentable
		}
		if !par.Published() {
			return ErrRecordNotPublic
		}
		stamp := now()
		rec, err = so.Records.Create(ctx, s, map[string]any{
			"user":       user,
			"parent":     parent,
			"title":      p.Title,
			"content":    p.Content,
			"created":    stamp,
			"modified":   stamp,
			"type":       models.RecordTypeComment,
			"status":     status,
			"user_agent": p.UserAgent,
		})
		if err != nil {
			return err
		}
		return so.Records.IncrementLockedField(ctx, s, par, "_comments", 1)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Repost creates a repost record pointing at a published original. The
// reposter's _posts, the original's _reposts and the original author's
// received _reposts move together.
func (so *Social) Repost(ctx context.Context, s *db.Session, user, record int64, userAgent string) (*models.Record, error) {
	var rec *models.Record
	err := s.InTransaction(ctx, func() error {
		actor, err := so.lockUser(ctx, s, user, db.LockUpdate)
		if err != nil {
			return err
		}
		orig, err := so.lockRecord(ctx, s, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if !orig.Published() {
			return ErrRecordNotPublic
		}
		author, err := so.lockUser(ctx, s, orig.User, db.LockUpdate)
		if err != nil {
			return err
		}
		stamp := now()
		rec, err = so.Records.Create(ctx, s, map[string]any{
			"user":       user,
			"parent":     record,
			"title":      "",
			"content":    "",
			"created":    stamp,
			"modified":   stamp,
			"type":       models.RecordTypeRepost,
			"status":     models.StatusPublish,
			"user_agent": userAgent,
		})
		if err != nil {
			return err
		}
		if err := so.Users.IncrementLockedField(ctx, s, actor, "_posts", 1); err != nil {
			return err
		}
		if err := so.Records.IncrementLockedField(ctx, s, orig, "_reposts", 1); err != nil {
			return err
		}
		return so.Users.IncrementLockedField(ctx, s, author, "_reposts", 1)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Moderation
// ─────────────────────────────────────────────────────────────────────────────

// Report opens a report case for a record. Reporting one's own record is
// rejected; reporting the same record twice fails with DuplicateCaseError
// through the (type, tag) key.
func (so *Social) Report(ctx context.Context, s *db.Session, user, record int64, reason string) (*models.Case, error) {
	var c *models.Case
	err := s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		rec, err := so.lockRecord(ctx, s, record, db.LockShare)
		if err != nil {
			return err
		}
		if rec.User == user {
			return ErrOwnRecord
		}
		tag := fmt.Sprintf("record:%d", record)
		stamp := now()
		c, err = so.Cases.Create(ctx, s, map[string]any{
			"user":     user,
			"tag":      tag,
			"created":  stamp,
			"modified": stamp,
			"type":     models.CaseTypeReport,
			"status":   models.CaseStatusOpen,
			"metadata": reason,
		})
		if db.IsDuplicateKey(err) {
			return &DuplicateCaseError{Type: models.CaseTypeReport, Tag: tag}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CloseCase moves an open case to resolved or dismissed.
func (so *Social) CloseCase(ctx context.Context, s *db.Session, id int64, status string) (*models.Case, error) {
	if status != models.CaseStatusResolved && status != models.CaseStatusDismissed {
		return nil, models.Operationf("case", "invalid closing status %q", status)
	}
	return so.Cases.Update(ctx, s, id, map[string]any{
		"status":   status,
		"modified": now(),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Topics
// ─────────────────────────────────────────────────────────────────────────────

// CreateTopic creates a topic. A duplicate slug fails with
// DuplicateColumnError.
func (so *Social) CreateTopic(ctx context.Context, s *db.Session, title, slug string) (*models.Topic, error) {
	stamp := now()
	tp, err := so.Topics.Create(ctx, s, map[string]any{
		"title":    title,
		"slug":     slug,
		"created":  stamp,
		"modified": stamp,
		"_records": 0,
	})
	if col, ok := uniqueColumn(err, models.TopicSchema); ok {
		return nil, &DuplicateColumnError{Table: models.TopicSchema.Table, Column: col}
	}
	if err != nil {
		return nil, err
	}
	return tp, nil
}

// AssignTopic attaches a record to a topic, maintaining the _records
// counter on the new topic and on the one the record is leaving, if any.
func (so *Social) AssignTopic(ctx context.Context, s *db.Session, record, topic int64) error {
	return s.InTransaction(ctx, func() error {
		rec, err := so.lockRecord(ctx, s, record, db.LockUpdate)
		if err != nil {
			return err
		}
		if rec.AffiliatedTo != nil && *rec.AffiliatedTo == topic {
			return nil
		}
		tp, err := so.Topics.FetchDirectly(ctx, s, topic, "id", db.LockUpdate)
		if err != nil {
			return err
		}
		if tp == nil {
			return fmt.Errorf("topic %d: %w", topic, db.ErrNotFound)
		}
		if rec.AffiliatedTo != nil {
			old, err := so.Topics.FetchDirectly(ctx, s, *rec.AffiliatedTo, "id", db.LockUpdate)
			if err != nil {
				return err
			}
			if old != nil {
				if err := so.Topics.IncrementLockedField(ctx, s, old, "_records", -1); err != nil {
					return err
				}
			}
		}
		if err := so.Records.UpdateLocked(ctx, s, rec, map[string]any{"affiliated_to": topic}); err != nil {
			return err
		}
		return so.Topics.IncrementLockedField(ctx, s, tp, "_records", 1)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Images
// ─────────────────────────────────────────────────────────────────────────────

// AttachImage stores an image row for a user, optionally bound to a record.
// A duplicate file name fails with DuplicateColumnError.
func (so *Social) AttachImage(ctx context.Context, s *db.Session, user int64, file string, record *int64, position int64) (*models.Image, error) {
	var img *models.Image
	err := s.InTransaction(ctx, func() error {
		if _, err := so.lockUser(ctx, s, user, db.LockShare); err != nil {
			return err
		}
		if record != nil {
			rec, err := so.lockRecord(ctx, s, *record, db.LockShare)
			if err != nil {
				return err
			}
			if rec.User != user {
				return ErrForeignRecord
			}
		}
		stamp := now()
		var err error
		img, err = so.Images.Create(ctx, s, map[string]any{
			"status":   models.ImageStatusActive,
			"file":     file,
			"created":  stamp,
			"modified": stamp,
			"user":     user,
			"record":   record,
			"position": position,
			"metadata": "",
		})
		if col, ok := uniqueColumn(err, models.ImageSchema); ok {
			return &DuplicateColumnError{Table: models.ImageSchema.Table, Column: col}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// SetAvatar points the user's avatar metadata entry at one of their own
// active images.
func (so *Social) SetAvatar(ctx context.Context, s *db.Session, user, image int64) error {
	return s.InTransaction(ctx, func() error {
		u, err := so.lockUser(ctx, s, user, db.LockShare)
		if err != nil {
			return err
		}
		img, err := so.Images.FetchDirectly(ctx, s, image, "id", db.LockShare)
		if err != nil {
			return err
		}
		if img == nil {
			return fmt.Errorf("image %d: %w", image, db.ErrNotFound)
		}
		if img.User != u.ID {
			return ErrForeignImage
		}
		if img.Status != models.ImageStatusActive {
			return ErrImageNotActive
		}
		return so.UserMeta.Set(ctx, s, "avatar", img.ID, &user)
	})
}
