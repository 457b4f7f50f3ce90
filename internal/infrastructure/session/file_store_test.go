package session

import (
	"context"
	"encoding/json"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/core/domain"
)

func sampleSession() *domain.Session {
	return &domain.Session{
		Token: "t1",
		User: &domain.User{
			ID:    "u1",
			Name:  "Ana",
			Email: "a@b.com",
			Role:  domain.RoleCustomer,
			Extra: map[string]json.RawMessage{"address": json.RawMessage(`"12 Main St"`)},
		},
	}
}

func newTestFileStore(t *testing.T, secret string) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), secret, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, secret := range []string{"", "s3cret"} {
		s := newTestFileStore(t, secret)
		want := sampleSession()

		if err := s.Save(ctx, want); err != nil {
			t.Fatalf("save (secret=%q): %v", secret, err)
		}
		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got == nil || got.Token != want.Token || !reflect.DeepEqual(got.User, want.User) {
			t.Fatalf("round trip mismatch (secret=%q): got %+v want %+v", secret, got, want)
		}
		if got.SavedAt.IsZero() {
			t.Fatalf("expected SavedAt to be stamped")
		}
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	s := newTestFileStore(t, "")
	if err := s.Save(context.Background(), sampleSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != filePerm {
		t.Fatalf("expected %o, got %o", filePerm, info.Mode().Perm())
	}
}

func TestFileStore_LoadMissingIsEmpty(t *testing.T) {
	s := newTestFileStore(t, "")
	got, err := s.Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", got, err)
	}
}

func TestFileStore_CorruptSlotSelfHeals(t *testing.T) {
	cases := map[string]string{
		"garbage":      "{not json",
		"token only":   `{"token":"t1"}`,
		"user only":    `{"user":{"id":"u1","role":"admin"}}`,
		"empty object": `{}`,
	}
	for name, body := range cases {
		s := newTestFileStore(t, "")
		if err := os.WriteFile(s.Path(), []byte(body), filePerm); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}

		got, err := s.Load(context.Background())
		if err != nil || got != nil {
			t.Fatalf("%s: expected nil, nil; got %+v, %v", name, got, err)
		}
		if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
			t.Fatalf("%s: expected corrupt slot to be removed", name)
		}
	}
}

func TestFileStore_WrongSecretSelfHeals(t *testing.T) {
	dir := t.TempDir()
	a, _ := NewFileStore(dir, "one", zerolog.Nop())
	b, _ := NewFileStore(dir, "two", zerolog.Nop())

	if err := a.Save(context.Background(), sampleSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := b.Load(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected unreadable slot to load as empty, got %+v, %v", got, err)
	}
	if got, _ := a.Load(context.Background()); got != nil {
		t.Fatalf("slot should have been cleared")
	}
}

func TestFileStore_SaveRejectsHalfSession(t *testing.T) {
	s := newTestFileStore(t, "")
	if err := s.Save(context.Background(), &domain.Session{Token: "t1"}); err == nil {
		t.Fatalf("expected error for token without user")
	}
	if err := s.Save(context.Background(), &domain.Session{User: &domain.User{ID: "u"}}); err == nil {
		t.Fatalf("expected error for user without token")
	}
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	s := newTestFileStore(t, "")
	ctx := context.Background()
	_ = s.Save(ctx, sampleSession())

	for i := 0; i < 2; i++ {
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear #%d: %v", i+1, err)
		}
		if got, _ := s.Load(ctx); got != nil {
			t.Fatalf("clear #%d: slot not empty", i+1)
		}
	}
}

func TestFileStore_WatchReportsExternalClear(t *testing.T) {
	dir := t.TempDir()
	portal, _ := NewFileStore(dir, "", zerolog.Nop())
	cli, _ := NewFileStore(dir, "", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := portal.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("save: %v", err)
	}

	changed := make(chan struct{}, 8)
	if err := portal.Watch(ctx, func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := cli.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected change notification")
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	want := sampleSession()

	if err := m.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	want.User.Name = "mutated"

	got, _ := m.Load(ctx)
	if got == nil || got.User.Name != "Ana" {
		t.Fatalf("memory store must hold its own copy, got %+v", got)
	}
	_ = m.Clear(ctx)
	_ = m.Clear(ctx)
	if got, _ := m.Load(ctx); got != nil {
		t.Fatalf("expected empty slot")
	}
}
