package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/scribe/internal/config"
	"github.com/hpungsan/scribe/internal/db"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/ops"
)

// testSetup creates a temporary store and config for testing.
func testSetup(t *testing.T) (*db.Store, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.UserID = "tester"
	return db.NewStore(database), cfg
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	store, cfg := testSetup(t)
	return NewHandlers(ops.Deps{Store: store, Identity: identity.Static(cfg.UserID), Config: cfg})
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// saveNote creates a note through note_save and returns its id.
func saveNote(t *testing.T, h *Handlers, args map[string]any) string {
	t.Helper()
	result, err := h.HandleSave(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	id, _ := out["id"].(string)
	if id == "" {
		t.Fatalf("save returned no id: %v", out)
	}
	return id
}

func TestHandleSave(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	existing := saveNote(t, h, map[string]any{"title": "Existing", "content": "body"})

	tests := []struct {
		name        string
		args        map[string]any
		wantError   bool
		errorCode   string
		wantWritten bool
		wantCreated bool
	}{
		{
			name:        "create with title and content",
			args:        map[string]any{"title": "Hello", "content": "<p>world</p>", "tags": []any{"a", "b"}},
			wantWritten: true,
			wantCreated: true,
		},
		{
			name:        "create with content only",
			args:        map[string]any{"content": "just a body"},
			wantWritten: true,
			wantCreated: true,
		},
		{
			name:        "blank draft writes nothing",
			args:        map[string]any{"title": "   ", "content": ""},
			wantWritten: false,
		},
		{
			name:        "update existing",
			args:        map[string]any{"id": existing, "content": "changed"},
			wantWritten: true,
		},
		{
			name:        "unchanged update writes nothing",
			args:        map[string]any{"id": existing, "content": "changed"},
			wantWritten: false,
		},
		{
			name:      "update missing note",
			args:      map[string]any{"id": "does-not-exist", "title": "x"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"titel": "typo"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"tags": "not-a-list"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Fatalf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			out := parseOutput(t, result)
			if out["written"] != tt.wantWritten {
				t.Errorf("written = %v, want %v", out["written"], tt.wantWritten)
			}
			if out["created"] != tt.wantCreated {
				t.Errorf("created = %v, want %v", out["created"], tt.wantCreated)
			}
		})
	}
}

func TestHandleSave_TagEdits(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	id := saveNote(t, h, map[string]any{"title": "Tagged", "tags": []any{"a", "b"}})

	result, _ := h.HandleSave(ctx, makeRequest(map[string]any{
		"id":          id,
		"add_tags":    []any{"c", "a"},
		"remove_tags": []any{"b"},
	}))
	parseOutput(t, result)

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
	out := parseOutput(t, result)
	tags := fmt.Sprint(out["tags"])
	if tags != "[a c]" {
		t.Errorf("tags = %s, want [a c]", tags)
	}
}

func TestHandleFetch(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	id := saveNote(t, h, map[string]any{"title": "Fetch me", "content": "full body"})

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{name: "fetch by id", args: map[string]any{"id": id}},
		{name: "fetch non-existent", args: map[string]any{"id": "nope"}, wantError: true, errorCode: "NOT_FOUND"},
		{name: "missing id", args: map[string]any{}, wantError: true, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFetch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Fatalf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			out := parseOutput(t, result)
			if out["content"] != "full body" {
				t.Errorf("content = %v, want %q", out["content"], "full body")
			}
		})
	}
}

func TestHandleList(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	saveNote(t, h, map[string]any{"title": "Groceries", "content": "milk", "tags": []any{"home"}})
	work := saveNote(t, h, map[string]any{"title": "Standup", "content": "blockers", "tags": []any{"work"}})
	saveNote(t, h, map[string]any{"title": "Retro", "content": "went well", "tags": []any{"work"}})

	pinResult, _ := h.HandlePin(ctx, makeRequest(map[string]any{"id": work}))
	parseOutput(t, pinResult)

	tests := []struct {
		name      string
		args      map[string]any
		wantCount int
		wantFirst string
		wantMore  bool
	}{
		{name: "all", args: map[string]any{}, wantCount: 3, wantFirst: "Standup"},
		{name: "by tag", args: map[string]any{"tag": "home"}, wantCount: 1, wantFirst: "Groceries"},
		{name: "by query", args: map[string]any{"query": "WELL"}, wantCount: 1, wantFirst: "Retro"},
		{name: "paginated", args: map[string]any{"limit": 1}, wantCount: 1, wantFirst: "Standup", wantMore: true},
		{name: "no matches", args: map[string]any{"tag": "none"}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			out := parseOutput(t, result)
			items := out["items"].([]any)
			if len(items) != tt.wantCount {
				t.Fatalf("got %d items, want %d", len(items), tt.wantCount)
			}
			if tt.wantCount > 0 {
				first := items[0].(map[string]any)
				if first["title"] != tt.wantFirst {
					t.Errorf("first title = %v, want %q", first["title"], tt.wantFirst)
				}
				if _, ok := first["content"]; ok {
					t.Error("list items should not carry full content")
				}
			}
			pagination := out["pagination"].(map[string]any)
			if pagination["has_more"] != tt.wantMore {
				t.Errorf("has_more = %v, want %v", pagination["has_more"], tt.wantMore)
			}
		})
	}
}

func TestHandlePin(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()
	id := saveNote(t, h, map[string]any{"title": "Pin me"})

	result, _ := h.HandlePin(ctx, makeRequest(map[string]any{"id": id}))
	if out := parseOutput(t, result); out["pinned"] != true {
		t.Errorf("pinned = %v, want true", out["pinned"])
	}

	result, _ = h.HandlePin(ctx, makeRequest(map[string]any{"id": id, "pinned": false}))
	if out := parseOutput(t, result); out["pinned"] != false {
		t.Errorf("pinned = %v, want false", out["pinned"])
	}

	result, _ = h.HandlePin(ctx, makeRequest(map[string]any{"id": "nope"}))
	if !result.IsError {
		t.Fatal("expected error pinning a missing note")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleDelete(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()
	id := saveNote(t, h, map[string]any{"title": "Delete me"})

	result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if out := parseOutput(t, result); out["deleted"] != true {
		t.Errorf("deleted = %v, want true", out["deleted"])
	}

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if !result.IsError {
		t.Fatal("expected error deleting twice")
	}
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{"id": id}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleExportImport(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()
	saveNote(t, h, map[string]any{"title": "One", "content": "first", "tags": []any{"x"}})
	saveNote(t, h, map[string]any{"title": "Two", "content": "second"})

	dir := filepath.Join(t.TempDir(), "exports")
	result, _ := h.HandleExport(ctx, makeRequest(map[string]any{"dir": dir}))
	out := parseOutput(t, result)
	if out["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", out["count"])
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read export dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("exported %d files, want 2", len(entries))
	}

	other := newTestHandlers(t)
	result, _ = other.HandleImport(ctx, makeRequest(map[string]any{"dir": dir}))
	out = parseOutput(t, result)
	if out["imported"] != float64(2) {
		t.Fatalf("imported = %v, want 2", out["imported"])
	}

	result, _ = other.HandleList(ctx, makeRequest(map[string]any{"tag": "x"}))
	out = parseOutput(t, result)
	if items := out["items"].([]any); len(items) != 1 {
		t.Errorf("got %d tagged items after import, want 1", len(items))
	}
}

func TestHandleImport_MissingDir(t *testing.T) {
	h := newTestHandlers(t)
	result, _ := h.HandleImport(context.Background(), makeRequest(map[string]any{
		"dir": filepath.Join(t.TempDir(), "missing"),
	}))
	if !result.IsError {
		t.Fatal("expected error importing a missing directory")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandlers_NoUser(t *testing.T) {
	store, cfg := testSetup(t)
	h := NewHandlers(ops.Deps{Store: store, Identity: identity.Static(""), Config: cfg})

	result, _ := h.HandleSave(context.Background(), makeRequest(map[string]any{"title": "x"}))
	if !result.IsError {
		t.Fatal("expected error without a user")
	}
	assertErrorCode(t, result, "UNAUTHENTICATED")
}

func TestServerRegistration(t *testing.T) {
	store, cfg := testSetup(t)

	s := NewServer(store, cfg, nil, "test")
	tools := s.ListTools()

	expectedTools := []string{
		"note_list",
		"note_fetch",
		"note_save",
		"note_pin",
		"note_delete",
		"note_export",
		"note_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	store, cfg := testSetup(t)

	cfg.DisabledTools = []string{"note_delete", "note_import", "note_delete"}
	s := NewServer(store, cfg, nil, "test")
	tools := s.ListTools()

	if len(tools) != 5 {
		t.Errorf("registered tool count = %d, want 5", len(tools))
	}
	for _, name := range []string{"note_delete", "note_import"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	for _, name := range []string{"note_save", "note_list"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	store, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(store, cfg, nil, "test")
	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"note_delete", "note_pin"}, wantLen: 0},
		{name: "one unknown", input: []string{"note_delete", "note_archive"}, wantLen: 1},
		{name: "all unknown", input: []string{"foo", "bar", "baz"}, wantLen: 3},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 7 {
		t.Errorf("AllToolNames() returned %d names, want 7", len(names))
	}
	if names[0] != "note_delete" {
		t.Errorf("AllToolNames() not sorted: %v", names)
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(fmt.Sprint(errObj["message"]), "secret.db") {
		t.Fatal("INTERNAL message leaked the underlying error")
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("import a.md: %w", errors.NewConflict("note changed"))

	errObj := errorObject(t, errorResult(wrappedErr))
	if errObj["code"] != string(errors.ErrConflict) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrConflict)
	}
	if msg := errObj["message"].(string); msg != "import a.md: note changed" {
		t.Errorf("message = %q, want wrapper context kept", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}
	code, _ := errorObject(t, result)["code"].(string)
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
