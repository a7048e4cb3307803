package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/scribe/internal/autosave"
	"github.com/hpungsan/scribe/internal/config"
	"github.com/hpungsan/scribe/internal/db"
	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/ops"
)

// setupTestEnv returns an env backed by a temporary SQLite store.
func setupTestEnv(t *testing.T) *appEnv {
	t.Helper()
	baseDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.UserID = "cli-user"
	cfg.DebounceMs = 60000

	env := &appEnv{baseDir: baseDir, cfg: cfg, log: logger.Nop()}
	t.Cleanup(env.Close)
	return env
}

type runResult struct {
	err    error
	stdout string
	stderr string
}

// run executes the CLI with stdin as the app's input.
func run(t *testing.T, env *appEnv, stdin string, args ...string) runResult {
	t.Helper()
	app := newCLIApp(env)
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)

	err := app.Run(append([]string{"scribe"}, args...))
	return runResult{err: err, stdout: out.String(), stderr: errOut.String()}
}

func decodeOut(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), s)
	return out
}

func errorCode(t *testing.T, r runResult) string {
	t.Helper()
	require.Error(t, r.err)
	errObj, ok := decodeOut(t, r.stderr)["error"].(map[string]any)
	require.True(t, ok, r.stderr)
	return errObj["code"].(string)
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single tag", input: "foo", expected: []string{"foo"}},
		{name: "multiple tags", input: "foo,bar,baz", expected: []string{"foo", "bar", "baz"}},
		{name: "tags with spaces", input: " foo , bar , baz ", expected: []string{"foo", "bar", "baz"}},
		{name: "empty tags filtered", input: "foo,,bar,", expected: []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseTags(tt.input))
		})
	}
}

func TestParseEditorLine(t *testing.T) {
	tests := []struct {
		line    string
		wantCmd string
		wantArg string
	}{
		{line: "plain text", wantCmd: "", wantArg: "plain text"},
		{line: ":title  Shopping list ", wantCmd: "title", wantArg: "Shopping list"},
		{line: ":tag home", wantCmd: "tag", wantArg: "home"},
		{line: ":save", wantCmd: "save", wantArg: ""},
		{line: `\:title is literal`, wantCmd: "", wantArg: ":title is literal"},
		{line: ":", wantCmd: "", wantArg: ":"},
		{line: "", wantCmd: "", wantArg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, arg := parseEditorLine(tt.line)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArg, arg)
		})
	}
}

func TestResolveArgs(t *testing.T) {
	args, ok := resolveArgs([]string{"scribe"}, true)
	assert.False(t, ok)
	assert.Nil(t, args)

	args, ok = resolveArgs([]string{"scribe"}, false)
	assert.True(t, ok)
	assert.Equal(t, []string{"scribe", "mcp"}, args)

	args, ok = resolveArgs([]string{"scribe", "list"}, true)
	assert.True(t, ok)
	assert.Equal(t, []string{"scribe", "list"}, args)
}

func TestReadInput(t *testing.T) {
	got, err := readInput(strings.NewReader("body\n\n"), 100)
	require.NoError(t, err)
	assert.Equal(t, "body", got)

	_, err = readInput(strings.NewReader(strings.Repeat("x", 100)), 50)
	assert.Error(t, err)
}

func TestCLISaveShowList(t *testing.T) {
	env := setupTestEnv(t)

	r := run(t, env, "# Plan\n\nship it", "save", "--title=Roadmap", "--tags=work, q3")
	require.NoError(t, r.err, r.stderr)
	saved := decodeOut(t, r.stdout)
	id := saved["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, true, saved["created"])
	assert.Equal(t, true, saved["written"])

	r = run(t, env, "", "show", id)
	require.NoError(t, r.err, r.stderr)
	var shown ops.FetchOutput
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &shown))
	assert.Equal(t, "Roadmap", shown.Title)
	assert.Equal(t, "# Plan\n\nship it", shown.Content)
	assert.Equal(t, []string{"work", "q3"}, shown.Tags)

	r = run(t, env, "", "save", "--add-tag=urgent", "--remove-tag=q3", id)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, false, decodeOut(t, r.stdout)["created"])

	r = run(t, env, "", "list", "--tag=urgent")
	require.NoError(t, r.err, r.stderr)
	items := decodeOut(t, r.stdout)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, []any{"work", "urgent"}, items[0].(map[string]any)["tags"])
}

func TestCLISave_BlankDraftWritesNothing(t *testing.T) {
	env := setupTestEnv(t)

	r := run(t, env, "   ", "save")
	require.NoError(t, r.err, r.stderr)
	out := decodeOut(t, r.stdout)
	assert.Equal(t, false, out["written"])
	assert.Nil(t, out["id"])

	r = run(t, env, "", "list")
	require.NoError(t, r.err)
	assert.Empty(t, decodeOut(t, r.stdout)["items"])
}

func TestCLIPinUnpinDelete(t *testing.T) {
	env := setupTestEnv(t)

	first := decodeOut(t, run(t, env, "older", "save", "--title=First").stdout)["id"].(string)
	run(t, env, "newer", "save", "--title=Second")

	r := run(t, env, "", "pin", first)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, true, decodeOut(t, r.stdout)["pinned"])

	r = run(t, env, "", "list")
	items := decodeOut(t, r.stdout)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, first, items[0].(map[string]any)["id"])

	r = run(t, env, "", "unpin", first)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, false, decodeOut(t, r.stdout)["pinned"])

	r = run(t, env, "", "delete", first)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, true, decodeOut(t, r.stdout)["deleted"])

	assert.Equal(t, "NOT_FOUND", errorCode(t, run(t, env, "", "show", first)))
	assert.Equal(t, "NOT_FOUND", errorCode(t, run(t, env, "", "delete", first)))
}

func TestCLIErrorHandling(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("show without id", func(t *testing.T) {
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, run(t, env, "", "show")))
	})

	t.Run("flags after id", func(t *testing.T) {
		id := decodeOut(t, run(t, env, "body", "save", "--title=Stray").stdout)["id"].(string)
		r := run(t, env, "", "save", id, "--add-tag=urgent")
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, r))
		assert.Contains(t, r.stderr, "--add-tag=urgent")

		shown := run(t, env, "", "show", id)
		require.NoError(t, shown.err, shown.stderr)
		assert.NotContains(t, shown.stdout, "urgent")
	})

	t.Run("pin missing note", func(t *testing.T) {
		assert.Equal(t, "NOT_FOUND", errorCode(t, run(t, env, "", "pin", "nope")))
	})

	t.Run("import missing directory", func(t *testing.T) {
		assert.Equal(t, "NOT_FOUND", errorCode(t, run(t, env, "", "import", filepath.Join(t.TempDir(), "missing"))))
	})

	t.Run("no user configured", func(t *testing.T) {
		noUser := setupTestEnv(t)
		noUser.cfg.UserID = ""
		assert.Equal(t, "UNAUTHENTICATED", errorCode(t, run(t, noUser, "body", "save")))
	})
}

func TestCLIExportImport(t *testing.T) {
	env := setupTestEnv(t)
	run(t, env, "alpha body", "save", "--title=Alpha", "--tags=keep")
	run(t, env, "beta body", "save", "--title=Beta")

	dir := filepath.Join(t.TempDir(), "out")
	r := run(t, env, "", "export", "--dir", dir, "--tag", "keep")
	require.NoError(t, r.err, r.stderr)
	assert.EqualValues(t, 1, decodeOut(t, r.stdout)["count"])

	other := setupTestEnv(t)
	r = run(t, other, "", "import", dir)
	require.NoError(t, r.err, r.stderr)
	assert.EqualValues(t, 1, decodeOut(t, r.stdout)["imported"])

	r = run(t, other, "", "list")
	items := decodeOut(t, r.stdout)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Alpha", items[0].(map[string]any)["title"])
}

func TestCLIEdit_NewNote(t *testing.T) {
	env := setupTestEnv(t)

	input := strings.Join([]string{
		":title Journal",
		"first line",
		":tag diary",
		`\:not a command`,
		":bogus",
		"second line",
		":quit",
		"ignored after quit",
	}, "\n")

	r := run(t, env, input, "edit")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stderr, "unknown command :bogus")
	assert.Contains(t, r.stderr, "created ")
	assert.Contains(t, r.stderr, "[saving]")

	out := decodeOut(t, r.stdout)
	id := out["id"].(string)
	require.NotEmpty(t, id)

	r = run(t, env, "", "show", id)
	require.NoError(t, r.err, r.stderr)
	var shown ops.FetchOutput
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &shown))
	assert.Equal(t, "Journal", shown.Title)
	assert.Equal(t, "first line\n:not a command\nsecond line\n", shown.Content)
	assert.Equal(t, []string{"diary"}, shown.Tags)
}

func TestCLIEdit_ExistingNoteAndSave(t *testing.T) {
	env := setupTestEnv(t)
	id := decodeOut(t, run(t, env, "start", "save", "--title=Log").stdout)["id"].(string)

	r := run(t, env, "more\n:save\n:untag none", "edit", id)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, id, decodeOut(t, r.stdout)["id"])
	assert.NotContains(t, r.stderr, "created ")

	r = run(t, env, "", "show", id)
	var shown ops.FetchOutput
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &shown))
	assert.Equal(t, "startmore\n", shown.Content)
}

func TestCLIEdit_MissingNote(t *testing.T) {
	env := setupTestEnv(t)
	assert.Equal(t, "NOT_FOUND", errorCode(t, run(t, env, "text", "edit", "missing")))
}

func TestRunEditor_FlushesOnEOF(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	store := db.NewStore(database)
	clock := clockwork.NewFakeClock()

	var status bytes.Buffer
	result, err := runEditor(context.Background(), strings.NewReader(":title Quick\nbody"), &status, autosave.Options{
		Store:    store,
		Identity: identity.Static("u1"),
		Clock:    clock,
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)

	n, err := store.FetchByID(context.Background(), docstore.UserCollection("u1"), result.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quick", n.Title)
	assert.Equal(t, "body\n", n.Content)
}

func TestCLIToken(t *testing.T) {
	env := setupTestEnv(t)

	assert.Equal(t, "INVALID_REQUEST", errorCode(t, run(t, env, "", "token")))

	env.cfg.JWTSecret = "cli-secret"
	r := run(t, env, "", "token", "bob")
	require.NoError(t, r.err, r.stderr)
	out := decodeOut(t, r.stdout)
	assert.Equal(t, "bob", out["user_id"])

	tokens, err := identity.NewTokens("cli-secret", env.cfg.TokenTTL())
	require.NoError(t, err)
	claims, err := tokens.Verify(out["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.UserID)

	r = run(t, env, "", "token")
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "cli-user", decodeOut(t, r.stdout)["user_id"])
}

func TestAppEnv_StoreIsLazyAndReused(t *testing.T) {
	env := setupTestEnv(t)
	assert.Nil(t, env.store)

	s1, err := env.Store(context.Background())
	require.NoError(t, err)
	s2, err := env.Store(context.Background())
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	env.Close()
	env.Close()
}

func TestAppEnv_RedisUnavailable(t *testing.T) {
	env := setupTestEnv(t)
	env.cfg.Store = config.StoreRedis
	env.cfg.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.Store(ctx)
	require.Error(t, err)
}
