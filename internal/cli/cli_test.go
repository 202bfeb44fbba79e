package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/gauge/internal/testutil"
)

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--data-dir", dir}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

func TestAssessmentLifecycle(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "start")
	assert.Contains(t, out, "(active)")
	assert.Contains(t, out, "  0 / 17")

	out = mustRun(t, dir, "answer", "health.sleep", "8")
	assert.Contains(t, out, "health.sleep = 8")

	out = mustRun(t, dir, "start")
	assert.Contains(t, out, "unfinished assessment (1 answered)")

	out = mustRun(t, dir, "resume")
	assert.Contains(t, out, "Resumed.")
	assert.Contains(t, out, "  1 / 17")

	out = mustRun(t, dir, "submit", "--notes", "first try")
	assert.Contains(t, out, "16 unanswered questions will count as 1.")
	assert.Contains(t, out, "Submitted:")

	out = mustRun(t, dir, "history")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "first try")

	out = mustRun(t, dir, "start")
	assert.Contains(t, out, "pre-filled from your last assessment")

	out = mustRun(t, dir, "fresh")
	assert.Contains(t, out, "Started a new assessment.")
	assert.Contains(t, out, "  0 / 17")
	assert.NotContains(t, out, "pre-filled")

	out = mustRun(t, dir, "report")
	assert.Contains(t, out, "Sessions:    1")
}

func TestAnswerCurrentAdvances(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "answer", "9")
	assert.Contains(t, out, "health.sleep = 9")
	assert.Contains(t, out, "2/17")

	out = mustRun(t, dir, "answer", "3", "4")
	assert.Contains(t, out, "health.nutrition = 4")

	out = mustRun(t, dir, "prev")
	assert.Contains(t, out, "1/17")
	assert.Contains(t, out, "current: 9")

	out = mustRun(t, dir, "prev")
	assert.Contains(t, out, "Already at the first question.")

	out = mustRun(t, dir, "questions")
	assert.Contains(t, out, ">  1. ")
}

func TestNextCarriesAcrossRunsBeforeFirstAnswer(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "next")
	assert.Contains(t, out, "2/17")
	assert.Contains(t, out, "health.movement")

	out = mustRun(t, dir, "next")
	assert.Contains(t, out, "3/17")
	assert.Contains(t, out, "health.nutrition")

	out = mustRun(t, dir, "answer", "7")
	assert.Contains(t, out, "health.nutrition = 7")
	assert.NotContains(t, out, "health.sleep")
}

func TestAnswerRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "answer", "health.sleep", "11")
	assert.ErrorContains(t, err, "rating must be a whole number from 1 to 10")

	_, err = run(t, dir, "answer", "health", "5")
	assert.ErrorContains(t, err, `unknown question "health"`)

	_, err = run(t, dir, "answer", "99", "5")
	assert.ErrorContains(t, err, "question position must be 1-17")
}

func TestLockedDataDir(t *testing.T) {
	dir := t.TempDir()
	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer lock.Unlock()

	_, err = run(t, dir, "status")
	assert.ErrorContains(t, err, "another gauge process")
}

func TestPrefs(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "prefs", "--goal", "80", "--prefill=false")
	assert.Contains(t, out, "prefill: false")
	assert.Contains(t, out, "goal:    80.0")

	_, err := run(t, dir, "prefs", "--goal", "500")
	assert.Error(t, err)

	out = mustRun(t, dir, "prefs")
	assert.Contains(t, out, "prefill: false", "preferences persist")
}

func TestHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "submit")
	mustRun(t, dir, "submit")
	mustRun(t, dir, "submit")

	out := mustRun(t, dir, "history")
	id := strings.Fields(strings.Split(out, "\n")[0])[0]

	out = mustRun(t, dir, "history", "show", id)
	assert.Contains(t, out, "health.sleep")

	_, err := run(t, dir, "history", "show", "missing")
	assert.ErrorContains(t, err, "no assessment with id missing")

	out = mustRun(t, dir, "clean", "--keep", "2", "--dry-run")
	assert.Contains(t, out, "Would remove 1 assessments.")

	mustRun(t, dir, "history", "delete", id)
	out = mustRun(t, dir, "history", "clear")
	assert.Contains(t, out, "Aborted.", "no confirmation on empty stdin")

	out = mustRun(t, dir, "history", "clear", "--yes")
	assert.Contains(t, out, "Deleted 2 assessments.")
}

func TestCleanRequiresPolicy(t *testing.T) {
	_, err := run(t, t.TempDir(), "clean")
	assert.ErrorContains(t, err, "history.max_age_days is not set")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "init")
	assert.Contains(t, out, "config.yaml")
	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	_, err = run(t, dir, "init")
	assert.ErrorContains(t, err, "already exists")

	mustRun(t, dir, "init", "--force")
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "-", formatSeconds(0))
	assert.Equal(t, "42s", formatSeconds(42))
	assert.Equal(t, "5m", formatSeconds(300))
	assert.Equal(t, "2h05m", formatSeconds(7500))
	assert.Equal(t, "3d", formatSeconds(3*86400))
}

func TestAutoResume(t *testing.T) {
	dir := testutil.TempDataDir(t, testutil.AutoResumeConfig())

	mustRun(t, dir, "answer", "health.sleep", "6")
	out := mustRun(t, dir, "status")
	assert.Contains(t, out, "(active)")
	assert.NotContains(t, out, "unfinished assessment")
}

func TestCleanByAge(t *testing.T) {
	dir := testutil.TempDataDir(t, testutil.PruneConfig(30))
	mustRun(t, dir, "submit")

	out := mustRun(t, dir, "clean")
	assert.Contains(t, out, "Nothing to clean up.", "a fresh submission is inside the window")
}
