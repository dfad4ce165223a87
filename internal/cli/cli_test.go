package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/campuslib/internal/backup"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/notify"
	"github.com/campuslib/campuslib/internal/ratelimit"
	"github.com/campuslib/campuslib/internal/search"
	"github.com/campuslib/campuslib/internal/service"
	"github.com/campuslib/campuslib/internal/store/sqlite"
	"github.com/campuslib/campuslib/internal/validation"
)

type testApp struct {
	*App
	out *bytes.Buffer
	now time.Time
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	log := logger.Discard().Logger

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	index, err := search.Open(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	limiter := ratelimit.New(0, 1)
	t.Cleanup(limiter.Stop)

	ta := &testApp{
		out: &bytes.Buffer{},
		now: time.Date(2024, 9, 2, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return ta.now }
	v := validation.New()

	borrows := service.NewBorrowService(st, clock, log)
	ta.App = &App{
		Borrows:   borrows,
		Catalog:   service.NewCatalogService(st, index, v, log),
		Users:     service.NewUserService(st, v, clock, log),
		Reminders: service.NewReminderService(borrows, notify.NewLogNotifier(log), limiter, log),
		Backups:   backup.NewService(st, backup.Options{Dir: t.TempDir(), Now: clock, Logger: log}),
		Out:       ta.out,
	}
	return ta
}

// run executes a command line and returns its output, resetting the buffer.
func (ta *testApp) run(t *testing.T, line string) (string, error) {
	t.Helper()

	ta.out.Reset()
	err := ta.Run(context.Background(), strings.Fields(line))
	return ta.out.String(), err
}

func (ta *testApp) mustRun(t *testing.T, line string) string {
	t.Helper()

	out, err := ta.run(t, line)
	require.NoError(t, err, line)
	return out
}

func TestRun_UnknownCommand(t *testing.T) {
	ta := setupTestApp(t)

	_, err := ta.run(t, "lend --isbn 1")
	assert.Equal(t, 2, ExitCode(err))

	err = ta.Run(context.Background(), nil)
	assert.Equal(t, 2, ExitCode(err))
}

func TestRun_Help(t *testing.T) {
	ta := setupTestApp(t)

	out, err := ta.run(t, "borrow -h")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: campuslib borrow")
	assert.Contains(t, out, "-student")
}

func TestRun_MissingFlags(t *testing.T) {
	ta := setupTestApp(t)

	_, err := ta.run(t, "borrow")
	require.Error(t, err)
	assert.Equal(t, "missing required flags: --isbn, --student", err.Error())
	assert.Equal(t, 2, ExitCode(err))
}

func TestCirculationFlow(t *testing.T) {
	ta := setupTestApp(t)

	ta.mustRun(t, "add-item --isbn 111 --name Clean --author Martin --category book --quantity 1")

	out := ta.mustRun(t, "borrow --student Alice@X.com --isbn 111")
	assert.Equal(t, "alice@x.com borrowed 111\n", out)

	// Last copy is out.
	_, err := ta.run(t, "borrow --student bob@x.com --isbn 111")
	assert.Equal(t, 5, ExitCode(err))

	ta.now = ta.now.AddDate(0, 0, 35)

	out = ta.mustRun(t, "overdue")
	assert.Contains(t, out, "alice@x.com")
	assert.Contains(t, out, "2024-09-30")

	out = ta.mustRun(t, "return --student alice@x.com --isbn 111")
	assert.Contains(t, out, "outstanding fine: 70")

	_, err = ta.run(t, "borrow --student alice@x.com --isbn 111")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnpaidFine))
	assert.Equal(t, 4, ExitCode(err))

	out = ta.mustRun(t, "unpaid")
	assert.Contains(t, out, "alice@x.com")
	assert.Contains(t, out, "70")

	out = ta.mustRun(t, "pay --student alice@x.com --amount 100")
	assert.Contains(t, out, "applied 70 of 100")
	assert.Contains(t, out, "outstanding fine: 0")

	out = ta.mustRun(t, "fine --student alice@x.com --json")
	var fine fineResult
	require.NoError(t, json.Unmarshal([]byte(out), &fine))
	assert.Equal(t, fineResult{Student: "alice@x.com", Total: 0}, fine)

	out = ta.mustRun(t, "history --student alice@x.com")
	assert.Contains(t, out, "returned")

	out = ta.mustRun(t, "history --student alice@x.com --payments")
	assert.Contains(t, out, "pay_")
}

func TestReturn_NothingBorrowed(t *testing.T) {
	ta := setupTestApp(t)
	ta.mustRun(t, "add-item --isbn 111 --name Clean --author Martin --category book")

	_, err := ta.run(t, "return --student alice@x.com --isbn 111")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNoActiveBorrow))
	assert.Equal(t, 3, ExitCode(err))
}

func TestPay_InvalidAmount(t *testing.T) {
	ta := setupTestApp(t)

	_, err := ta.run(t, "pay --student alice@x.com --amount -5")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidAmount))
	assert.Equal(t, 2, ExitCode(err))
}

func TestCatalogCommands(t *testing.T) {
	ta := setupTestApp(t)

	ta.mustRun(t, "add-item --isbn 111 --name Clean --author Martin --category book --quantity 2")
	ta.mustRun(t, "add-item --isbn 333 --name Blue --author Davis --category cd")

	_, err := ta.run(t, "add-item --isbn 999 --name X --author Y --category vinyl")
	assert.Equal(t, 2, ExitCode(err))

	_, err = ta.run(t, "add-item --isbn 111 --name Clean --author Martin --category book")
	assert.Equal(t, 6, ExitCode(err))

	out := ta.mustRun(t, "restock --isbn 111 --quantity 3")
	assert.Equal(t, "111 now has 5 copies on the shelf\n", out)

	out = ta.mustRun(t, "items")
	assert.Contains(t, out, "ISBN")
	assert.Contains(t, out, "Blue")
	assert.Contains(t, out, "Clean")

	out = ta.mustRun(t, "search --json davis")
	var found []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "333", found[0]["isbn"])

	out = ta.mustRun(t, "search --category book")
	assert.Contains(t, out, "111")
	assert.NotContains(t, out, "333")

	out = ta.mustRun(t, "reindex")
	assert.Equal(t, "indexed 2 items\n", out)

	ta.mustRun(t, "remove-item --isbn 333")
	out = ta.mustRun(t, "search davis")
	assert.Equal(t, "no matching items\n", out)
}

func TestAccountCommands(t *testing.T) {
	ta := setupTestApp(t)

	out := ta.mustRun(t, "register --email Lib@X.com --password longenough --role librarian")
	assert.Equal(t, "registered lib@x.com as librarian\n", out)

	out = ta.mustRun(t, "login --email lib@x.com --password longenough")
	assert.Equal(t, "authenticated lib@x.com (librarian), may manage inventory\n", out)

	_, err := ta.run(t, "login --email lib@x.com --password wrongpassword")
	assert.Equal(t, 7, ExitCode(err))

	_, err = ta.run(t, "register --email lib@x.com --password longenough")
	assert.Equal(t, 6, ExitCode(err))

	ta.now = ta.now.AddDate(2, 0, 0)
	out = ta.mustRun(t, "inactive")
	assert.Contains(t, out, "lib@x.com")
	assert.Contains(t, out, "never")
}

func TestRemindCommand(t *testing.T) {
	ta := setupTestApp(t)

	out := ta.mustRun(t, "remind")
	assert.Equal(t, "sent 0 of 0 fine reminders\n", out)

	ta.mustRun(t, "add-item --isbn 333 --name Blue --author Davis --category cd")
	ta.mustRun(t, "borrow --student bob@x.com --isbn 333")
	ta.now = ta.now.AddDate(0, 0, 9)
	ta.mustRun(t, "return --student bob@x.com --isbn 333")

	out = ta.mustRun(t, "remind --json")
	var report service.ReminderReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, service.ReminderReport{Recipients: 1, Sent: 1}, report)
}

func TestBackupCommands(t *testing.T) {
	ta := setupTestApp(t)
	ta.mustRun(t, "add-item --isbn 111 --name Clean --author Martin --category book")
	ta.mustRun(t, "register --email stu@x.com --password longenough")

	out := ta.mustRun(t, "backup --json")
	var created struct {
		ID     string              `json:"id"`
		Path   string              `json:"path"`
		Counts backup.EntityCounts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "backup-2024-09-02-120000", created.ID)
	assert.Equal(t, backup.EntityCounts{Items: 1, Users: 1}, created.Counts)

	out = ta.mustRun(t, "backups")
	assert.Contains(t, out, created.ID)

	_, err := ta.run(t, "restore "+created.ID)
	assert.Equal(t, 2, ExitCode(err), "restoring over data is refused")

	_, err = ta.run(t, "restore")
	assert.Equal(t, 2, ExitCode(err))

	fresh := setupTestApp(t)
	out = fresh.mustRun(t, "restore --dry-run "+created.Path)
	assert.Equal(t, "archive ok: items 1, users 1, borrows 0, payments 0\n", out)

	out = fresh.mustRun(t, "restore "+created.Path)
	assert.Equal(t, "restored 2 records, indexed 1 items\n", out)

	out = fresh.mustRun(t, "search clean")
	assert.Contains(t, out, "111")
	out = fresh.mustRun(t, "login --email stu@x.com --password longenough")
	assert.Equal(t, "authenticated stu@x.com (student), may borrow\n", out)

	ta.mustRun(t, "backups --delete "+created.ID)
	_, err = ta.run(t, "backups --delete "+created.ID)
	assert.Equal(t, 3, ExitCode(err))
}
