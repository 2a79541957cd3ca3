package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/db"
	"github.com/angelmondragon/gearshare-backend/pkg/logger"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(Embedded()))
	require.NoError(t, Validate(Source("migrations")))
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(" UP ")
	require.NoError(t, err)
	assert.Equal(t, CommandUp, cmd)

	_, err = ParseCommand("redo")
	require.Error(t, err)
}

func TestRunRequiresDB(t *testing.T) {
	require.Error(t, Run(context.Background(), nil, Embedded(), CommandUp, "", logger.Nop()))
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	fsys := Embedded()
	matches, err := fs.Glob(fsys, "*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := fs.ReadFile(fsys, matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestBookingsMigrationGuardsInvariants(t *testing.T) {
	content := readMigration(t, "create_bookings")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS bookings",
		"CHECK (start_date <= end_date)",
		"CHECK (commission_cents >= 0 AND commission_cents <= total_price_cents)",
		"CHECK (owner_id <> renter_id)",
		"CHECK ((status = 'completed') = (completed_at IS NOT NULL))",
		"DROP TABLE IF EXISTS bookings",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestLedgerMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "create_ledger_entries")
	for _, sub := range []string{
		"CHECK (amount_cents > 0)",
		"BEFORE UPDATE OR DELETE ON ledger_entries",
		"DROP TRIGGER IF EXISTS trg_ledger_entries_append_only",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestNotificationsMigrationDeduplicatesEvents(t *testing.T) {
	assert.Contains(t, readMigration(t, "create_notifications"), "UNIQUE (event_id, recipient_id)")
}

func TestValidateRejectsBadSets(t *testing.T) {
	both := []byte("-- +goose Up\n-- +goose Down\n")
	cases := map[string]fstest.MapFS{
		"empty":     {},
		"bad name":  {"bad-name.sql": {Data: both}},
		"no down":   {"20260101000000_no_down.sql": {Data: []byte("-- +goose Up\n")}},
		"duplicate": {"20260101000000_a.sql": {Data: both}, "20260101000000_b.sql": {Data: both}},
	}
	for name, fsys := range cases {
		assert.Error(t, Validate(fsys), name)
	}
	assert.NoError(t, Validate(fstest.MapFS{"20260101000000_ok.sql": {Data: both}, "README.md": {Data: []byte("x")}}))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 3, 4, 5, 0, time.UTC)

	path, err := createSQLMigration(dir, " Add Booking Notes! ", now)
	require.NoError(t, err)
	assert.Equal(t, "20260402030405_add_booking_notes.sql", filepath.Base(path))
	require.NoError(t, Validate(os.DirFS(dir)))

	_, err = createSQLMigration(dir, "add booking notes", now)
	require.Error(t, err, "duplicate version must fail")

	_, err = createSQLMigration(dir, "!!!", now)
	require.Error(t, err)
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:migrate_%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	client := db.NewFromConn(conn)

	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		DB:           config.DBConfig{Driver: config.DriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), client))

	for _, table := range []string{"bookings", "ledger_entries", "notifications", "outbox_events", "outbox_dlq"} {
		assert.True(t, conn.Migrator().HasTable(table), "table %s", table)
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	require.NoError(t, MaybeRunDev(context.Background(), cfg, logger.Nop(), nil))
	assert.False(t, strings.EqualFold(cfg.App.Env, config.AppEnvDev))
}
