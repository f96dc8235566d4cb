package models

import "time"

// Roles a user row may carry.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// UserSchema is the column layout of the users table. The trailing
// underscore-prefixed columns are denormalized counters maintained
// transactionally by the repo layer — never computed at read time.
var UserSchema = Schema{
	Table: "users",
	ID:    "id",
	Columns: []string{
		"id", "role", "username", "display_name", "domain", "email",
		"description", "registered",
		"_followings", "_followers", "_posts", "_likes", "_reposts",
	},
}

// User is a snapshot of one users row. username, display_name, domain and
// email are each unique across the table.
type User struct {
	Base

	ID          int64
	Role        string
	Username    string
	DisplayName string
	Domain      string
	Email       string
	Description string
	Registered  time.Time

	Followings int64
	Followers  int64
	Posts      int64
	Likes      int64
	Reposts    int64
}

// UserFromRow builds a User from a scanned row. Fails with *OperationError
// when any schema column is absent.
func UserFromRow(row Row) (*User, error) {
	r := newReader(UserSchema.Table, row)
	u := &User{
		ID:          r.id("id"),
		Role:        r.str("role"),
		Username:    r.str("username"),
		DisplayName: r.str("display_name"),
		Domain:      r.str("domain"),
		Email:       r.str("email"),
		Description: r.str("description"),
		Registered:  r.tim("registered"),
		Followings:  r.integer("_followings"),
		Followers:   r.integer("_followers"),
		Posts:       r.integer("_posts"),
		Likes:       r.integer("_likes"),
		Reposts:     r.integer("_reposts"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	u.bind(row)
	return u, nil
}

func (u *User) PrimaryKey() int64 { return u.ID }
