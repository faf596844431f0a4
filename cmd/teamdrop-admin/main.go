// Package main is the entry point for the TeamDrop admin CLI.
// It operates directly on the configured database for operator tasks
// that should not go through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/config"
	"github.com/prn-tf/teamdrop/internal/repository"
	"github.com/prn-tf/teamdrop/internal/repository/postgres"
	"github.com/prn-tf/teamdrop/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("TeamDrop Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "users":
		err = runUsers(args)

	case "grant-upload":
		err = runGrantUpload(args)

	case "grant-admin":
		err = runGrantAdmin(args)

	case "purge-sessions":
		err = runPurgeSessions(args)

	case "migrate":
		err = runMigrate(args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openRepositories connects to the configured database.
func openRepositories(ctx context.Context, configPath string) (*repository.Repositories, repository.DatabaseHealth, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := zerolog.Nop()
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewRepositories(db), db, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewRepositories(db), db, nil
}

func runUsers(args []string) error {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 100, "maximum number of users to list")
	fs.Parse(args)

	ctx := context.Background()
	repos, db, err := openRepositories(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := repos.User.List(ctx, repository.ListOptions{Limit: *limit})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tADMIN\tUPLOAD\tCREATED")
	for _, u := range result.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%s\n",
			u.ID, u.Username, u.Email, u.IsAdmin, u.CanUpload, u.CreatedAt.Format("2006-01-02"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d users\n", len(result.Items), result.Total)
	return nil
}

func runGrantUpload(args []string) error {
	fs := flag.NewFlagSet("grant-upload", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	userID := fs.Int64("user-id", 0, "user to update")
	revoke := fs.Bool("revoke", false, "revoke instead of grant")
	fs.Parse(args)

	if *userID <= 0 {
		return fmt.Errorf("--user-id is required")
	}

	return updateUser(*configPath, *userID, func(u *userFlags) {
		u.canUpload = boolPtr(!*revoke)
	})
}

func runGrantAdmin(args []string) error {
	fs := flag.NewFlagSet("grant-admin", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	userID := fs.Int64("user-id", 0, "user to update")
	revoke := fs.Bool("revoke", false, "revoke instead of grant")
	fs.Parse(args)

	if *userID <= 0 {
		return fmt.Errorf("--user-id is required")
	}

	return updateUser(*configPath, *userID, func(u *userFlags) {
		u.isAdmin = boolPtr(!*revoke)
	})
}

type userFlags struct {
	canUpload *bool
	isAdmin   *bool
}

func updateUser(configPath string, userID int64, apply func(*userFlags)) error {
	ctx := context.Background()
	repos, db, err := openRepositories(ctx, configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := repos.User.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	var flags userFlags
	apply(&flags)
	if flags.canUpload != nil {
		user.CanUpload = *flags.canUpload
	}
	if flags.isAdmin != nil {
		user.IsAdmin = *flags.isAdmin
		if *flags.isAdmin {
			// Admins may always create projects.
			user.CanUpload = true
		}
	}

	if err := repos.User.Update(ctx, user); err != nil {
		return err
	}

	fmt.Printf("updated user %d (%s): admin=%t upload=%t\n",
		user.ID, user.Username, user.IsAdmin, user.CanUpload)
	return nil
}

func runPurgeSessions(args []string) error {
	fs := flag.NewFlagSet("purge-sessions", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	ctx := context.Background()
	repos, db, err := openRepositories(ctx, *configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repos.Session.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("purged %d expired sessions\n", n)
	return nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	ctx := context.Background()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx)
}

func boolPtr(b bool) *bool {
	return &b
}

func printUsage() {
	fmt.Println(`TeamDrop Admin CLI

Usage:
  teamdrop-admin <command> [arguments]

Commands:
  users           List registered users
  grant-upload    Grant (or revoke) project creation rights for a user
  grant-admin     Grant (or revoke) the global admin flag for a user
  purge-sessions  Delete expired login sessions
  migrate         Apply pending database migrations
  version         Print version information
  help            Show this help message

Examples:
  teamdrop-admin users --config config.yaml
  teamdrop-admin grant-upload --user-id 3
  teamdrop-admin grant-upload --user-id 3 --revoke
  teamdrop-admin grant-admin --user-id 3
  teamdrop-admin purge-sessions

Use "teamdrop-admin <command> --help" for more information about a command.`)
}
