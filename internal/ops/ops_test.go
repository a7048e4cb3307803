package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/scribe/internal/config"
	"github.com/hpungsan/scribe/internal/db"
	"github.com/hpungsan/scribe/internal/identity"
)

func stringPtr(s string) *string { return &s }

func tagsPtr(tags ...string) *[]string { return &tags }

// newTestDeps returns deps over a fresh sqlite database, signed in as uid.
func newTestDeps(t *testing.T, uid string) Deps {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return Deps{
		Store:    db.NewStore(database),
		Identity: identity.Static(uid),
		Config:   config.DefaultConfig(),
	}
}

// mustSave creates a note and returns its id.
func mustSave(t *testing.T, deps Deps, title, content string, tags ...string) string {
	t.Helper()
	out, err := Save(context.Background(), deps, SaveInput{
		Title:   stringPtr(title),
		Content: stringPtr(content),
		Tags:    &tags,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !out.Created {
		t.Fatalf("Save did not create a note for %q", title)
	}
	return out.ID
}

func identityFor(uid string) identity.Provider { return identity.Static(uid) }
