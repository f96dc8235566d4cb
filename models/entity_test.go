package models

import (
	"errors"
	"testing"
	"time"
)

func validUserRow() Row {
	return Row{
		"id": int64(1), "role": "member", "username": "alice",
		"display_name": "Alice", "domain": "alice", "email": "a@example.com",
		"description": "", "registered": time.Now().UTC(),
		"_followings": int64(0), "_followers": int64(0), "_posts": int64(0),
		"_likes": int64(0), "_reposts": int64(0),
	}
}

func TestUserFromRow(t *testing.T) {
	u, err := UserFromRow(validUserRow())
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	if u.ID != 1 || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestFromRow_MissingColumn(t *testing.T) {
	row := validUserRow()
	delete(row, "email")

	_, err := UserFromRow(row)
	var op *OperationError
	if !errors.As(err, &op) {
		t.Fatalf("expected OperationError, got %v", err)
	}
}

func TestFromRow_NullIdentifier(t *testing.T) {
	row := validUserRow()
	row["id"] = nil

	_, err := UserFromRow(row)
	var op *OperationError
	if !errors.As(err, &op) {
		t.Fatalf("expected OperationError, got %v", err)
	}
}

func TestFromRow_NullableColumns(t *testing.T) {
	rec, err := RecordFromRow(Row{
		"id": int64(7), "user": int64(1), "parent": nil, "affiliated_to": nil,
		"title": "t", "content": "c",
		"created": time.Now().UTC(), "modified": time.Now().UTC(),
		"type": RecordTypePost, "status": StatusPublish, "user_agent": "",
		"_likes": int64(0), "_dislikes": int64(0), "_comments": int64(0),
		"_reposts": int64(0),
	})
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	if rec.Parent != nil || rec.AffiliatedTo != nil {
		t.Fatal("null columns should map to nil pointers")
	}
	if !rec.Published() {
		t.Fatal("publish status should report published")
	}
}

func TestField_RawAccess(t *testing.T) {
	u, err := UserFromRow(validUserRow())
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	v, ok := u.Field("_posts")
	if !ok {
		t.Fatal("expected _posts field")
	}
	if n, ok := AsInt64(v); !ok || n != 0 {
		t.Fatalf("_posts = %v", v)
	}
	if _, ok := u.Field("no_such"); ok {
		t.Fatal("unknown field should report absence")
	}
}

// Drivers disagree on scan types; the coercions absorb the spread.
func TestAsInt64(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{int(5), 5, true},
		{float64(5), 5, true},
		{float64(5.5), 0, false},
		{"17", 17, true},
		{[]byte("17"), 17, true},
		{"x", 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := AsInt64(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("AsInt64(%v %T) = %d/%v, want %d/%v", tc.in, tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestTimeCoercion(t *testing.T) {
	row := validUserRow()
	row["registered"] = "2026-08-30 12:00:00"

	u, err := UserFromRow(row)
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	if u.Registered.Year() != 2026 || u.Registered.Month() != 8 {
		t.Fatalf("registered = %v", u.Registered)
	}
}

func TestMetadataFromRow(t *testing.T) {
	m, err := MetadataFromRow(Row{
		"id": int64(3), "grp": MetaGroupUser, "affiliated_to": int64(9),
		"name": "theme", "value": "dark", "type": MetaString,
	})
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	if m.AffiliatedTo == nil || *m.AffiliatedTo != 9 {
		t.Fatalf("affiliated_to = %v", m.AffiliatedTo)
	}
}
