package repo_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
	"github.com/Skryldev/social-toolkit/repo"
)

// Schema used by every test in this package. The session checks a second
// connection out of the pool, so the database must be a named shared-cache
// instance rather than a plain :memory: one.
const testSchema = `
CREATE TABLE users (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	role         TEXT NOT NULL,
	username     TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL UNIQUE,
	domain       TEXT NOT NULL UNIQUE,
	email        TEXT NOT NULL UNIQUE,
	description  TEXT NOT NULL DEFAULT '',
	registered   DATETIME NOT NULL,
	_followings  INTEGER NOT NULL DEFAULT 0,
	_followers   INTEGER NOT NULL DEFAULT 0,
	_posts       INTEGER NOT NULL DEFAULT 0,
	_likes       INTEGER NOT NULL DEFAULT 0,
	_reposts     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	"user"        INTEGER NOT NULL,
	parent        INTEGER,
	affiliated_to INTEGER,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	created       DATETIME NOT NULL,
	modified      DATETIME NOT NULL,
	type          TEXT NOT NULL,
	status        TEXT NOT NULL,
	user_agent    TEXT NOT NULL DEFAULT '',
	_likes        INTEGER NOT NULL DEFAULT 0,
	_dislikes     INTEGER NOT NULL DEFAULT 0,
	_comments     INTEGER NOT NULL DEFAULT 0,
	_reposts      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE relationships (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	type    TEXT NOT NULL,
	subject INTEGER NOT NULL,
	object  INTEGER NOT NULL,
	created DATETIME NOT NULL,
	UNIQUE (type, subject, object)
);

CREATE TABLE cases (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	"user"   INTEGER NOT NULL,
	tag      TEXT NOT NULL,
	created  DATETIME NOT NULL,
	modified DATETIME NOT NULL,
	type     TEXT NOT NULL,
	status   TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '',
	UNIQUE (type, tag)
);

CREATE TABLE topics (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	title    TEXT NOT NULL,
	slug     TEXT NOT NULL UNIQUE,
	created  DATETIME NOT NULL,
	modified DATETIME NOT NULL,
	_records INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE images (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	status   TEXT NOT NULL,
	file     TEXT NOT NULL UNIQUE,
	created  DATETIME NOT NULL,
	modified DATETIME NOT NULL,
	"user"   INTEGER NOT NULL,
	record   INTEGER,
	position INTEGER NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT ''
);

CREATE TABLE metadata (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	grp           TEXT NOT NULL,
	affiliated_to INTEGER,
	name          TEXT NOT NULL,
	value         TEXT NOT NULL,
	type          TEXT NOT NULL,
	UNIQUE (grp, affiliated_to, name)
);
CREATE UNIQUE INDEX metadata_global_name ON metadata (grp, name) WHERE affiliated_to IS NULL;
`

// newFixture opens a fresh named in-memory database, installs the schema
// and pins one session for the test.
func newFixture(t *testing.T) (*repo.Social, *db.Session) {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	database, err := db.Open(db.Config{DSN: dsn, DriverName: "sqlite3"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	for _, stmt := range strings.Split(testSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := database.Exec(ctx, stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}

	s, err := database.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return repo.NewSocial(), s
}

// seedUser registers a user with unique identity fields derived from name.
func seedUser(t *testing.T, so *repo.Social, s *db.Session, name string) *models.User {
	t.Helper()
	u, err := so.Register(context.Background(), s, map[string]any{
		"username":     name,
		"display_name": "User " + name,
		"email":        name + "@example.com",
		"domain":       name,
	})
	if err != nil {
		t.Fatalf("seed user %q: %v", name, err)
	}
	return u
}

// seedPost creates a published post for user.
func seedPost(t *testing.T, so *repo.Social, s *db.Session, user int64) *models.Record {
	t.Helper()
	rec, err := so.CreatePost(context.Background(), s, user, repo.PostParams{
		Title:   "post",
		Content: "content",
	})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return rec
}

// reloadUser re-reads a user snapshot.
func reloadUser(t *testing.T, so *repo.Social, s *db.Session, id int64) *models.User {
	t.Helper()
	u, err := so.Users.FetchDirectly(context.Background(), s, id, "id", db.LockNone)
	if err != nil {
		t.Fatalf("reload user %d: %v", id, err)
	}
	if u == nil {
		t.Fatalf("user %d vanished", id)
	}
	return u
}

// reloadRecord re-reads a record snapshot.
func reloadRecord(t *testing.T, so *repo.Social, s *db.Session, id int64) *models.Record {
	t.Helper()
	rec, err := so.Records.FetchDirectly(context.Background(), s, id, "id", db.LockNone)
	if err != nil {
		t.Fatalf("reload record %d: %v", id, err)
	}
	if rec == nil {
		t.Fatalf("record %d vanished", id)
	}
	return rec
}
