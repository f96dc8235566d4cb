package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
	"github.com/Skryldev/social-toolkit/repo"
)

func TestMetadata_ScalarRoundTrip(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	u := seedUser(t, so, s, "holder")

	cases := []struct {
		name  string
		value any
		tag   string
	}{
		{"theme", "dark", models.MetaString},
		{"page_size", int64(25), models.MetaInteger},
		{"ratio", 0.75, models.MetaFloat},
		{"notify", true, models.MetaBoolean},
	}
	for _, tc := range cases {
		if _, err := so.UserMeta.Add(ctx, s, tc.name, tc.value, &u.ID); err != nil {
			t.Fatalf("add %s: %v", tc.name, err)
		}
	}
	for _, tc := range cases {
		entry, err := so.UserMeta.Entry(ctx, s, tc.name, &u.ID, db.LockNone)
		if err != nil {
			t.Fatalf("entry %s: %v", tc.name, err)
		}
		if entry.Type != tc.tag {
			t.Fatalf("%s tag = %q, want %q", tc.name, entry.Type, tc.tag)
		}
		got, err := so.UserMeta.Get(ctx, s, tc.name, &u.ID)
		if err != nil {
			t.Fatalf("get %s: %v", tc.name, err)
		}
		if got != tc.value {
			t.Fatalf("%s = %v (%T), want %v (%T)", tc.name, got, got, tc.value, tc.value)
		}
	}
}

func TestMetadata_OpaqueRoundTrip(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	u := seedUser(t, so, s, "holder")

	stored := map[string]any{"city": "Riga", "zip": int64(1010)}
	if _, err := so.UserMeta.Add(ctx, s, "address", stored, &u.ID); err != nil {
		t.Fatalf("add: %v", err)
	}

	entry, err := so.UserMeta.Entry(ctx, s, "address", &u.ID, db.LockNone)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Type != models.MetaOpaque {
		t.Fatalf("tag = %q, want opaque", entry.Type)
	}

	v, err := so.UserMeta.Get(ctx, s, "address", &u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("decoded as %T, want map", v)
	}
	if m["city"] != "Riga" {
		t.Fatalf("city = %v", m["city"])
	}
	// Integer width after deserialization is not fixed; compare by value.
	zip, ok := models.AsInt64(m["zip"])
	if !ok || zip != 1010 {
		t.Fatalf("zip = %v (%T)", m["zip"], m["zip"])
	}
}

func TestMetadata_ListRoundTrip(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	u := seedUser(t, so, s, "holder")

	if _, err := so.UserMeta.Add(ctx, s, "tags", []any{"go", "sql"}, &u.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	v, err := so.UserMeta.Get(ctx, s, "tags", &u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	items, ok := v.([]any)
	if !ok {
		t.Fatalf("decoded as %T, want slice", v)
	}
	if len(items) != 2 || items[0] != "go" || items[1] != "sql" {
		t.Fatalf("items = %v", items)
	}
}

func TestMetadata_GetAbsent(t *testing.T) {
	so, s := newFixture(t)
	u := seedUser(t, so, s, "holder")

	v, err := so.UserMeta.Get(context.Background(), s, "missing", &u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil, got %v", v)
	}
}

func TestMetadata_AddDuplicate(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	u := seedUser(t, so, s, "holder")

	if _, err := so.UserMeta.Add(ctx, s, "theme", "dark", &u.ID); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := so.UserMeta.Add(ctx, s, "theme", "light", &u.ID)
	var dup *repo.DuplicateColumnError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateColumnError, got %v", err)
	}
}

func TestMetadata_SetUpserts(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	u := seedUser(t, so, s, "holder")

	// First Set creates.
	if err := so.UserMeta.Set(ctx, s, "theme", "dark", &u.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Second Set rewrites in place, including the type tag.
	if err := so.UserMeta.Set(ctx, s, "theme", int64(3), &u.ID); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	v, err := so.UserMeta.Get(ctx, s, "theme", &u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != int64(3) {
		t.Fatalf("value = %v (%T), want 3", v, v)
	}
}

func TestMetadata_SameNameAcrossScopes(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	a := seedUser(t, so, s, "first")
	b := seedUser(t, so, s, "second")

	if err := so.UserMeta.Set(ctx, s, "theme", "dark", &a.ID); err != nil {
		t.Fatalf("a: %v", err)
	}
	if err := so.UserMeta.Set(ctx, s, "theme", "light", &b.ID); err != nil {
		t.Fatalf("b: %v", err)
	}
	// A global (unaffiliated) entry under a different group is independent.
	if err := so.SystemMeta.Set(ctx, s, "theme", "default", nil); err != nil {
		t.Fatalf("system: %v", err)
	}

	va, _ := so.UserMeta.Get(ctx, s, "theme", &a.ID)
	vb, _ := so.UserMeta.Get(ctx, s, "theme", &b.ID)
	vs, _ := so.SystemMeta.Get(ctx, s, "theme", nil)
	if va != "dark" || vb != "light" || vs != "default" {
		t.Fatalf("themes = %v / %v / %v", va, vb, vs)
	}
}

func TestMetadata_Delete(t *testing.T) {
	so, s := newFixture(t)
	ctx := context.Background()
	u := seedUser(t, so, s, "holder")

	if err := so.UserMeta.Set(ctx, s, "theme", "dark", &u.ID); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := so.UserMeta.Delete(ctx, s, "theme", &u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	v, err := so.UserMeta.Get(ctx, s, "theme", &u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil after delete, got %v", v)
	}
	// Deleting again is a no-op.
	if err := so.UserMeta.Delete(ctx, s, "theme", &u.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
