package repo

import (
	"context"
	"regexp"

	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
	"github.com/Skryldev/social-toolkit/validate"
)

// signupSchema filters raw registration input. Order matches the feedback
// precedence users see: identity fields first, free text last.
var signupSchema = validate.Schema{
	Elements: []validate.Element{
		{
			Key: "username", Label: "Username", Required: true,
			Validator: validate.String{
				MinLength: 3, MaxLength: 30,
				Pattern: regexp.MustCompile(`[a-z0-9_]+`),
			},
		},
		{
			Key: "display_name", Label: "Display name", Required: true,
			Validator: validate.String{MinLength: 1, MaxLength: 60},
		},
		{
			Key: "email", Label: "Email address", Required: true,
			Validator: validate.String{MaxLength: 254, Format: validate.FormatEmail},
		},
		{
			Key: "domain", Label: "Personal domain", Required: true,
			Validator: validate.String{MinLength: 1, MaxLength: 120, Format: validate.FormatSlug},
		},
		{
			Key: "role", Label: "Role", Default: models.RoleMember,
			Validator: validate.Enum{Values: []string{
				models.RoleMember, models.RoleModerator, models.RoleAdmin,
			}},
		},
		{
			Key: "description", Label: "Description", Default: "",
			Validator: validate.String{AllowEmpty: true, MaxLength: 500},
		},
	},
}

// Register validates raw signup input and creates the user. Malformed input
// fails with *validate.FieldError; a taken username, display name, email or
// domain fails with *DuplicateColumnError naming the column.
func (so *Social) Register(ctx context.Context, s *db.Session, input map[string]any) (*models.User, error) {
	data, err := signupSchema.Filter(input)
	if err != nil {
		return nil, err
	}
	data["registered"] = now()
	data["_followings"] = 0
	data["_followers"] = 0
	data["_posts"] = 0
	data["_likes"] = 0
	data["_reposts"] = 0

	u, err := so.Users.Create(ctx, s, data)
	if col, ok := uniqueColumn(err, models.UserSchema); ok {
		return nil, &DuplicateColumnError{Table: models.UserSchema.Table, Column: col}
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UserByUsername fetches a user by username, or nil when absent.
func (so *Social) UserByUsername(ctx context.Context, s *db.Session, username string) (*models.User, error) {
	return so.Users.FetchDirectly(ctx, s, username, "username", db.LockNone)
}

// UpdateProfile rewrites a user's mutable profile fields. The same
// duplicate classification as Register applies.
func (so *Social) UpdateProfile(ctx context.Context, s *db.Session, id int64, input map[string]any) (*models.User, error) {
	data, err := profileSchema.Filter(input)
	if err != nil {
		return nil, err
	}
	u, err := so.Users.Update(ctx, s, id, data)
	if col, ok := uniqueColumn(err, models.UserSchema); ok {
		return nil, &DuplicateColumnError{Table: models.UserSchema.Table, Column: col}
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// profileSchema is the updatable subset of the signup fields; everything is
// optional and absent keys are left untouched.
var profileSchema = validate.Schema{
	Elements: []validate.Element{
		{
			Key: "display_name", Label: "Display name",
			Validator: validate.String{MinLength: 1, MaxLength: 60},
		},
		{
			Key: "email", Label: "Email address",
			Validator: validate.String{MaxLength: 254, Format: validate.FormatEmail},
		},
		{
			Key: "domain", Label: "Personal domain",
			Validator: validate.String{MinLength: 1, MaxLength: 120, Format: validate.FormatSlug},
		},
		{
			Key: "description", Label: "Description",
			Validator: validate.String{AllowEmpty: true, MaxLength: 500},
		},
	},
}
