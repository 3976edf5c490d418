package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecentOrdering(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	turns := []struct {
		role Role
		text string
	}{
		{RoleUser, "hi"},
		{RoleAssistant, "hello!"},
		{RoleUser, "any bars nearby?"},
		{RoleAssistant, "a few, let me look"},
	}
	for _, turn := range turns {
		if err := s.Append(ctx, "s1", turn.role, turn.text); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("Recent() = %d entries, want %d", len(got), len(turns))
	}
	for i, e := range got {
		if e.Role != turns[i].role || e.Content != turns[i].text {
			t.Errorf("entry %d = %+v, want %s %q", i, e, turns[i].role, turns[i].text)
		}
		if e.CreatedAt.IsZero() {
			t.Errorf("entry %d has zero CreatedAt", i)
		}
	}
}

func TestRecentReturnsTailOldestFirst(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		if err := s.Append(ctx, "s1", RoleUser, text); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() = %d entries, want 2", len(got))
	}
	if got[0].Content != "four" || got[1].Content != "five" {
		t.Errorf("Recent() = %q then %q, want the newest two oldest-first", got[0].Content, got[1].Content)
	}
}

func TestRecentIsolatesSessions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "alice", RoleUser, "from alice"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, "bob", RoleUser, "from bob"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.Recent(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "from alice" {
		t.Errorf("Recent(alice) = %+v, want only alice's turn", got)
	}
}

func TestRecentUnknownSessionIsEmpty(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	got, err := s.Recent(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent() = %+v, want empty", got)
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Append(context.Background(), "s1", Role("system"), "nope"); err == nil {
		t.Fatal("Append() expected error for a role outside the schema check")
	}
}

func TestCloseThenUse(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Append(context.Background(), "s1", RoleUser, "late"); err == nil {
		t.Error("Append() after Close expected error")
	}
}
