package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

// DefaultDir is where `-cmd=create` writes new files. Binaries run the copy
// embedded at build time.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the migration set: the embedded one when dir is empty,
// otherwise the files on disk.
func Source(dir string) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Command is one goose operation understood by Run.
type Command string

const (
	CommandUp      Command = "up"
	CommandDown    Command = "down"
	CommandStatus  Command = "status"
	CommandVersion Command = "version"
)

func ParseCommand(raw string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(raw))); c {
	case CommandUp, CommandDown, CommandStatus, CommandVersion:
		return c, nil
	default:
		return "", fmt.Errorf("unknown migrate command %q", raw)
	}
}

// Run applies cmd against db. target is only read by CommandVersion and is a
// YYYYMMDDHHMMSS version; goose decides whether that means up or down.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, cmd Command, target string, logg *logger.Logger) error {
	if db == nil {
		return errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	var results []*goose.MigrationResult
	switch cmd {
	case CommandUp:
		results, err = provider.Up(ctx)
	case CommandDown:
		var res *goose.MigrationResult
		if res, err = provider.Down(ctx); res != nil {
			results = append(results, res)
		}
	case CommandStatus:
		return logStatus(ctx, provider, logg)
	case CommandVersion:
		results, err = migrateTo(ctx, provider, target)
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}

	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migrate.applied")
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

func migrateTo(ctx context.Context, provider *goose.Provider, target string) ([]*goose.MigrationResult, error) {
	version, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == version:
		return nil, nil
	case current < version:
		return provider.UpTo(ctx, version)
	default:
		return provider.DownTo(ctx, version)
	}
}

func logStatus(ctx context.Context, provider *goose.Provider, logg *logger.Logger) error {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, st := range statuses {
		fields := map[string]any{
			"version": st.Source.Version,
			"state":   string(st.State),
		}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		logg.Info(logg.WithFields(ctx, fields), "migrate.status")
	}
	return nil
}
