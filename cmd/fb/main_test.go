package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featureboard/featureboard/internal/registry"
	"github.com/featureboard/featureboard/internal/storage/sqlite"
	"github.com/featureboard/featureboard/internal/types"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "fb-cli-test-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = os.Setenv("HOME", dir)
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	_ = os.Setenv("NO_COLOR", "1")
	_ = os.Setenv("FB_NO_PAGER", "1")
	_ = os.Unsetenv("FB_OTEL_ENABLED")
	_ = os.Unsetenv("FB_DB")
	stdinIsTerminal = func() bool { return false }

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type result struct {
	stdout string
	stderr string
	code   int
}

// cli runs fb against a fresh store in t's temp dir.
type cli struct {
	t  *testing.T
	db string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	return &cli{t: t, db: filepath.Join(t.TempDir(), "features.db")}
}

func (c *cli) run(args ...string) result {
	c.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--db", c.db}, args...)
	code := execute(context.Background(), full, &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	r := c.run(args...)
	require.Equal(c.t, 0, r.code, "fb %v\nstdout: %s\nstderr: %s", args, r.stdout, r.stderr)
	return r.stdout
}

func (c *cli) feature(args ...string) *types.Feature {
	c.t.Helper()
	var f types.Feature
	require.NoError(c.t, json.Unmarshal([]byte(c.ok(append(args, "--json")...)), &f))
	return &f
}

func (c *cli) add(category, name string, steps ...string) *types.Feature {
	c.t.Helper()
	args := []string{"add", "--category", category, "--name", name}
	for _, s := range steps {
		args = append(args, "--step", s)
	}
	return c.feature(args...)
}

func (c *cli) ids(args ...string) []int64 {
	c.t.Helper()
	var fs []*types.Feature
	require.NoError(c.t, json.Unmarshal([]byte(c.ok(append(args, "--json")...)), &fs))
	ids := make([]int64, len(fs))
	for i, f := range fs {
		ids[i] = f.ID
	}
	return ids
}

func TestAddAndShow(t *testing.T) {
	c := newCLI(t)
	f := c.add("auth", "Login page", "Open /login", "Submit")
	assert.Equal(t, int64(1), f.ID)
	assert.Equal(t, 1, f.Priority)
	assert.Equal(t, []string{"Open /login", "Submit"}, f.Steps)

	second := c.add("auth", "Logout")
	assert.Equal(t, 2, second.Priority)

	got := c.feature("show", "1")
	if diff := cmp.Diff(f.Steps, got.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	md := c.ok("show", "1")
	assert.Contains(t, md, "# Login page")
	assert.Contains(t, md, "1. Open /login")
}

func TestAddPlainOutput(t *testing.T) {
	c := newCLI(t)
	out := c.ok("add", "--category", "ui", "--name", "Theme")
	assert.Contains(t, out, "Created feature #1: Theme")
	assert.Contains(t, out, "To Do, priority 1")

	assert.Empty(t, c.ok("--quiet", "add", "--category", "ui", "--name", "Icons"))
}

func TestAddRequiresFieldsWithoutTerminal(t *testing.T) {
	c := newCLI(t)
	r := c.run("add", "--name", "No category")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "category")
}

func TestErrorsAsJSON(t *testing.T) {
	c := newCLI(t)
	c.ok("stats") // create the store so stderr holds only the error
	r := c.run("show", "42", "--json")
	require.Equal(t, 1, r.code)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(r.stderr), &body))
	assert.Equal(t, "feature 42 not found", body["error"])
}

func TestInvalidID(t *testing.T) {
	c := newCLI(t)
	for _, arg := range []string{"0", "-1", "abc"} {
		r := c.run("show", arg)
		assert.Equal(t, 1, r.code, arg)
		assert.Contains(t, r.stderr, "invalid feature id", arg)
	}
}

func TestUpdate(t *testing.T) {
	c := newCLI(t)
	c.add("auth", "Login", "old step")

	f := c.feature("update", "1", "--name", "Sign in", "--step", "a", "--step", "b")
	assert.Equal(t, "Sign in", f.Name)
	assert.Equal(t, "auth", f.Category)
	assert.Equal(t, []string{"a", "b"}, f.Steps)

	f = c.feature("update", "1", "--clear-steps")
	assert.Empty(t, f.Steps)

	r := c.run("update", "1")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "nothing to update")
}

func TestStateMovesBetweenLanes(t *testing.T) {
	c := newCLI(t)
	c.add("a", "one")
	c.add("a", "two")

	f := c.feature("state", "1", "--in-progress")
	assert.True(t, f.InProgress)
	assert.Equal(t, types.LaneInProgress, f.Lane())

	f = c.feature("state", "1", "--passes")
	assert.True(t, f.Passes)
	assert.NotNil(t, f.CompletedAt)

	f = c.feature("state", "1", "--passes=false", "--in-progress=false")
	assert.Equal(t, types.LaneTodo, f.Lane())
	assert.Nil(t, f.CompletedAt)

	assert.Equal(t, []int64{1, 2}, c.ids("list", "--lane", "todo"))
}

func TestPriorityMoveReorder(t *testing.T) {
	c := newCLI(t)
	c.add("a", "one")
	c.add("a", "two")
	c.add("a", "three")

	c.ok("move", "3", "up")
	assert.Equal(t, []int64{1, 3, 2}, c.ids("list"))

	r := c.run("move", "1", "up")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "edge of the lane")

	c.ok("reorder", "2", "--target", "1")
	assert.Equal(t, []int64{2, 1, 3}, c.ids("list"))

	c.ok("reorder", "2", "--target", "3", "--after")
	assert.Equal(t, []int64{1, 3, 2}, c.ids("list"))

	f := c.feature("priority", "1", "10")
	assert.Equal(t, 10, f.Priority)
	assert.Equal(t, []int64{3, 2, 1}, c.ids("list"))

	r = c.run("priority", "1", "0")
	assert.Equal(t, 1, r.code)

	r = c.run("reorder", "1")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "target")
}

func TestReorderAcrossLanesFails(t *testing.T) {
	c := newCLI(t)
	c.add("a", "one")
	c.add("a", "two")
	c.ok("state", "2", "--in-progress")

	r := c.run("reorder", "1", "--target", "2")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "same lane")
}

func TestDelete(t *testing.T) {
	c := newCLI(t)
	c.add("a", "one")
	assert.Contains(t, c.ok("delete", "1"), "Deleted feature #1")
	assert.Equal(t, 1, c.run("delete", "1").code)
	assert.Equal(t, "[]\n", c.ok("list", "--json"))
}

func TestListBoardAndFilters(t *testing.T) {
	c := newCLI(t)
	c.add("auth", "Login")
	c.add("ui", "Theme")
	c.add("auth", "Logout")
	c.ok("state", "2", "--passes")

	board := c.ok("list")
	assert.Contains(t, board, "TO DO (2)")
	assert.Contains(t, board, "DONE (1)")

	assert.Equal(t, []int64{1, 3}, c.ids("list", "--category", "auth"))
	assert.Equal(t, []int64{2}, c.ids("list", "--lane", "done", "--completed-after", "-1d"))
	assert.Empty(t, c.ids("list", "--lane", "done", "--completed-after", "+1d"))

	var page types.Page
	require.NoError(t, json.Unmarshal([]byte(c.ok("list", "--limit", "2", "--offset", "1", "--json")), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)
	assert.Len(t, page.Features, 2)

	r := c.run("list", "--lane", "sideways")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "invalid lane")
}

func TestStatsAndNext(t *testing.T) {
	c := newCLI(t)

	var next map[string]*types.Feature
	require.NoError(t, json.Unmarshal([]byte(c.ok("next", "--json")), &next))
	assert.Nil(t, next["feature"])
	assert.Contains(t, c.ok("next"), "No pending features")

	c.add("a", "one")
	c.add("a", "two")
	c.add("a", "three")
	c.ok("state", "1", "--passes")
	c.ok("state", "2", "--in-progress")

	var s types.Statistics
	require.NoError(t, json.Unmarshal([]byte(c.ok("stats", "--json")), &s))
	assert.Equal(t, types.NewStatistics(1, 1, 3), s)
	assert.Contains(t, c.ok("stats"), "33.3%")

	require.NoError(t, json.Unmarshal([]byte(c.ok("next", "--json")), &next))
	require.NotNil(t, next["feature"])
	assert.Equal(t, int64(3), next["feature"].ID)
}

func TestMigrateStatus(t *testing.T) {
	c := newCLI(t)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(c.ok("migrate", "--json")), &info))
	assert.EqualValues(t, sqlite.LatestVersion(), info["version"])

	var steps []sqlite.MigrationStatus
	require.NoError(t, json.Unmarshal([]byte(c.ok("migrate", "--status", "--json")), &steps))
	require.Len(t, steps, sqlite.LatestVersion())
	for _, s := range steps {
		assert.True(t, s.Applied, s.Name)
	}

	r := c.run("migrate", "--status", "--all")
	assert.Equal(t, 1, r.code)
}

func TestStoresAndMigrateAll(t *testing.T) {
	c := newCLI(t)
	c.add("a", "one")
	dir := t.TempDir()
	storesFile := filepath.Join(dir, "dashboards.json")
	t.Setenv("FB_STORES_FILE", storesFile)

	c.ok("stores", "add", "Main", c.db)
	c.ok("stores", "add", "Ghost", "ghost.db")

	var statuses []registry.Status
	require.NoError(t, json.Unmarshal([]byte(c.ok("stores", "list", "--json")), &statuses))
	require.Len(t, statuses, 3)
	assert.Equal(t, registry.DefaultEntry.Name, statuses[0].Name)
	assert.Equal(t, "Main", statuses[1].Name)
	assert.True(t, statuses[1].Exists)
	assert.True(t, statuses[1].IsActive)
	assert.False(t, statuses[2].Exists)

	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(c.ok("migrate", "--all", "--json")), &results))
	require.Len(t, results, 3)
	assert.Equal(t, true, results[0]["skipped"])
	assert.EqualValues(t, sqlite.LatestVersion(), results[1]["version"])
	assert.Equal(t, true, results[2]["skipped"])

	c.ok("stores", "remove", "Ghost")
	r := c.run("stores", "remove", "Ghost")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "no store named")
}

func TestMigrateAllReportsBrokenStore(t *testing.T) {
	c := newCLI(t)
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.db")
	require.NoError(t, os.WriteFile(broken, []byte("not a sqlite database at all, just text"), 0o600))
	t.Setenv("FB_STORES_FILE", filepath.Join(dir, "dashboards.json"))

	c.ok("stores", "add", "Broken", "broken.db")
	r := c.run("migrate", "--all")
	assert.NotEqual(t, 0, r.code)
	assert.Contains(t, r.stdout, "Broken")
	assert.Contains(t, r.stderr, "failed to migrate")
}

func TestImportExport(t *testing.T) {
	c := newCLI(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "feature_list.json")
	require.NoError(t, os.WriteFile(src, []byte(`[
		{"category": "auth", "name": "Login", "steps": ["open"]},
		{"category": "ui", "name": "Theme", "passes": true}
	]`), 0o600))

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(c.ok("import", src, "--json")), &res))
	assert.EqualValues(t, 2, res["imported"])
	assert.NoFileExists(t, src)

	out := c.ok("import", src)
	assert.Contains(t, out, "already holds 2 features")

	dst := filepath.Join(dir, "export.json")
	assert.Contains(t, c.ok("export", dst), "Exported 2 features")

	var exported []map[string]interface{}
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, "Login", exported[0]["name"])
	assert.Equal(t, true, exported[1]["passes"])
}

func TestServeRefusesRemoteBind(t *testing.T) {
	c := newCLI(t)
	r := c.run("serve", "--listen", "0.0.0.0:0")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "--allow-remote")
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	assert.Contains(t, c.ok("version"), "fb version "+Version)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(c.ok("version", "--json")), &v))
	assert.Equal(t, Version, v["version"])
	assert.Equal(t, Build, v["build"])
}

func TestSplitSteps(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, splitSteps("  one \n\n two\n"))
	assert.Equal(t, []string{}, splitSteps(""))
}
