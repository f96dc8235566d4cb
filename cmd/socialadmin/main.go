// socialadmin is the operator CLI: registration, graph edits and
// moderation actions against the live database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/Skryldev/social-toolkit/config"
	"github.com/Skryldev/social-toolkit/db"
	"github.com/Skryldev/social-toolkit/models"
	"github.com/Skryldev/social-toolkit/repo"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "socialadmin",
		Short:         "Administrative operations for the social backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory holding socialtoolkit.yaml")

	root.AddCommand(
		registerCmd(),
		followCmd(),
		unfollowCmd(),
		postCmd(),
		likeCmd(),
		reportCmd(),
		topicCmd(),
		metaCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("socialadmin failed", "err", err)
		os.Exit(1)
	}
}

// withSession loads config, opens the database and hands a pinned session
// to fn.
func withSession(fn func(ctx context.Context, so *repo.Social, s *db.Session) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLog(cfg.Log)

	dbCfg, err := cfg.DBConfig()
	if err != nil {
		return err
	}
	database, err := db.Open(dbCfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	s, err := database.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, repo.NewSocial(), s)
}

func setupLog(cfg config.Log) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

func registerCmd() *cobra.Command {
	var username, displayName, email, domain, role, description string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				u, err := so.Register(ctx, s, map[string]any{
					"username":     username,
					"display_name": displayName,
					"email":        email,
					"domain":       domain,
					"role":         role,
					"description":  description,
				})
				if err != nil {
					return err
				}
				fmt.Printf("registered user %d (%s)\n", u.ID, u.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "unique username")
	cmd.Flags().StringVar(&displayName, "display-name", "", "unique display name")
	cmd.Flags().StringVar(&email, "email", "", "unique email address")
	cmd.Flags().StringVar(&domain, "domain", "", "unique personal domain")
	cmd.Flags().StringVar(&role, "role", models.RoleMember, "member, moderator or admin")
	cmd.Flags().StringVar(&description, "description", "", "profile description")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("display-name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func followCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <subject> <object>",
		Short: "Make subject follow object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				subject, err := parseID(args[0], "subject")
				if err != nil {
					return err
				}
				object, err := parseID(args[1], "object")
				if err != nil {
					return err
				}
				return so.Follow(ctx, s, subject, object)
			})
		},
	}
}

func unfollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <subject> <object>",
		Short: "Make subject unfollow object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				subject, err := parseID(args[0], "subject")
				if err != nil {
					return err
				}
				object, err := parseID(args[1], "object")
				if err != nil {
					return err
				}
				return so.Unfollow(ctx, s, subject, object)
			})
		},
	}
}

func postCmd() *cobra.Command {
	var title, content, status string
	cmd := &cobra.Command{
		Use:   "post <user>",
		Short: "Create a post for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				user, err := parseID(args[0], "user")
				if err != nil {
					return err
				}
				rec, err := so.CreatePost(ctx, s, user, repo.PostParams{
					Title:     title,
					Content:   content,
					Status:    status,
					UserAgent: "socialadmin",
				})
				if err != nil {
					return err
				}
				fmt.Printf("created record %d\n", rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "post title")
	cmd.Flags().StringVar(&content, "content", "", "post body")
	cmd.Flags().StringVar(&status, "status", models.StatusPublish, "publish, pending, trashed or blocked")
	return cmd
}

func likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <user> <record>",
		Short: "Record a like",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				user, err := parseID(args[0], "user")
				if err != nil {
					return err
				}
				record, err := parseID(args[1], "record")
				if err != nil {
					return err
				}
				return so.Like(ctx, s, user, record)
			})
		},
	}
}

func reportCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "report <user> <record>",
		Short: "Open a report case for a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				user, err := parseID(args[0], "user")
				if err != nil {
					return err
				}
				record, err := parseID(args[1], "record")
				if err != nil {
					return err
				}
				c, err := so.Report(ctx, s, user, record, reason)
				if err != nil {
					return err
				}
				fmt.Printf("opened case %d (%s)\n", c.ID, c.Tag)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "report reason")
	return cmd
}

func topicCmd() *cobra.Command {
	topic := &cobra.Command{
		Use:   "topic",
		Short: "Topic management",
	}

	var title, slug string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				tp, err := so.CreateTopic(ctx, s, title, slug)
				if err != nil {
					return err
				}
				fmt.Printf("created topic %d (%s)\n", tp.ID, tp.Slug)
				return nil
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "topic title")
	create.Flags().StringVar(&slug, "slug", "", "unique slug")
	_ = create.MarkFlagRequired("title")
	_ = create.MarkFlagRequired("slug")

	assign := &cobra.Command{
		Use:   "assign <record> <topic>",
		Short: "Attach a record to a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				record, err := parseID(args[0], "record")
				if err != nil {
					return err
				}
				tp, err := parseID(args[1], "topic")
				if err != nil {
					return err
				}
				return so.AssignTopic(ctx, s, record, tp)
			})
		},
	}

	topic.AddCommand(create, assign)
	return topic
}

func metaCmd() *cobra.Command {
	meta := &cobra.Command{
		Use:   "meta",
		Short: "System metadata",
	}

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Read a system metadata entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				v, err := so.SystemMeta.Get(ctx, s, args[0], nil)
				if err != nil {
					return err
				}
				if v == nil {
					fmt.Println("(unset)")
					return nil
				}
				fmt.Printf("%v\n", v)
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Write a system metadata entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, so *repo.Social, s *db.Session) error {
				return so.SystemMeta.Set(ctx, s, args[0], args[1], nil)
			})
		},
	}

	meta.AddCommand(get, set)
	return meta
}
