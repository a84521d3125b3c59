package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smartmarks/smartmarks/internal/ai"
	"github.com/smartmarks/smartmarks/internal/app"
	"github.com/smartmarks/smartmarks/internal/bus"
	"github.com/smartmarks/smartmarks/internal/model"
	"github.com/smartmarks/smartmarks/internal/storage"
)

// fakeAnalyzer returns a canned result or error without touching the network.
type fakeAnalyzer struct {
	result ai.Result
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, url string) (ai.Result, error) {
	f.calls++
	if f.err != nil {
		return ai.Result{}, f.err
	}
	return f.result, nil
}

func fixedAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		result: ai.Result{
			Analysis: ai.Analysis{
				Title:   "Example Domain",
				Summary: "A domain reserved for documentation examples.",
				Tags:    []string{"reference", "web", "docs"},
			},
			Source: ai.SourceProvider,
		},
	}
}

// stubCredential signs in as the given user id without a real provider.
func stubCredential(id string) func(string) (*model.User, error) {
	return func(string) (*model.User, error) {
		return &model.User{ID: id, Name: "Test User", Email: id + "@example.com"}, nil
	}
}

func newTestApp(t *testing.T, store storage.Storage, b bus.Bus, analyzer ai.Analyzer) *app.App {
	t.Helper()
	a, err := app.New(app.Params{
		Storage:         store,
		Bus:             b,
		Analyzer:        analyzer,
		ParseCredential: stubCredential("u1"),
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"https://example.com", "https://example.com", false},
		{"http://example.com", "http://example.com", false},
		{"example.com", "https://example.com", false},
		{"example.com/path?q=1", "https://example.com/path?q=1", false},
		{"", "", true},
		{"not a url", "", true},
	}

	for _, tt := range tests {
		got, err := app.NormalizeURL(tt.input)
		if tt.wantErr {
			if !errors.Is(err, app.ErrInvalidURL) {
				t.Errorf("NormalizeURL(%q): expected ErrInvalidURL, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeURL(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeURL_PrefixEquivalence(t *testing.T) {
	// Any input without an http prefix must behave exactly like the same
	// input with https:// prepended.
	inputs := []string{"example.com", "sub.domain.dev/x", "no spaces!", "weird..host"}
	for _, s := range inputs {
		plain, plainErr := app.NormalizeURL(s)
		prefixed, prefixedErr := app.NormalizeURL("https://" + s)

		if (plainErr == nil) != (prefixedErr == nil) {
			t.Errorf("%q: validity differs from prefixed form (%v vs %v)", s, plainErr, prefixedErr)
			continue
		}
		if plainErr == nil && plain != prefixed {
			t.Errorf("%q: normalized to %q, prefixed form to %q", s, plain, prefixed)
		}
	}
}

func TestApp_EndToEnd(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	analyzer := fixedAnalyzer()
	a := newTestApp(t, store, hub.Join(), analyzer)

	// Sign in
	user, err := a.SignIn("credential")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("expected user u1, got %q", user.ID)
	}

	// Add
	b, err := a.Add(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if b.URL != "https://example.com" {
		t.Errorf("expected normalized url, got %q", b.URL)
	}
	if b.Title != "Example Domain" {
		t.Errorf("expected enrichment title, got %q", b.Title)
	}
	if len(b.Tags) != 3 {
		t.Errorf("expected enrichment tags, got %v", b.Tags)
	}

	all, err := store.LoadBookmarks()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(all) != 1 || all[0].UserID != "u1" {
		t.Fatalf("expected one stored bookmark owned by u1, got %+v", all)
	}

	// Delete
	if err := a.Delete(context.Background(), b.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	all, _ = store.LoadBookmarks()
	if len(model.FilterByUser(all, "u1")) != 0 {
		t.Error("expected empty collection for u1 after delete")
	}
}

func TestApp_AddRejectsInvalidURLBeforeProviderCall(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	analyzer := fixedAnalyzer()
	a := newTestApp(t, store, hub.Join(), analyzer)

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	if _, err := a.Add(context.Background(), "not a url"); !errors.Is(err, app.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Error("invalid input must be rejected before any provider call")
	}
}

func TestApp_AddRequiresSignIn(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())

	if _, err := a.Add(context.Background(), "example.com"); !errors.Is(err, app.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestApp_AddSurfacesProviderFailure(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	analyzer := &fakeAnalyzer{err: fmt.Errorf("connection refused")}
	a := newTestApp(t, store, hub.Join(), analyzer)

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	if _, err := a.Add(context.Background(), "example.com"); err == nil {
		t.Fatal("expected provider failure to surface")
	}

	// Failed enrichment must not create a bookmark.
	all, _ := store.LoadBookmarks()
	if len(all) != 0 {
		t.Error("expected no bookmark persisted after provider failure")
	}
	// And the add affordance must be available again.
	if a.Busy() {
		t.Error("expected busy flag cleared after failure")
	}
}

func TestApp_AddPreservesOtherUsersBookmarks(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewJSONStorage(dir)
	hub := bus.NewMemoryHub()

	other := model.NewBookmark(model.NewBookmarkParams{
		URL: "https://theirs.example", Title: "Theirs", UserID: "u2",
	})
	if err := store.SaveBookmarks([]model.Bookmark{other}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())
	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if _, err := a.Add(context.Background(), "example.com"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	all, _ := store.LoadBookmarks()
	if len(all) != 2 {
		t.Fatalf("expected 2 bookmarks, got %d", len(all))
	}
	if len(model.FilterByUser(all, "u2")) != 1 {
		t.Error("write clobbered another user's bookmark")
	}
}

func TestApp_DeleteMissingIDIsNoop(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if _, err := a.Add(context.Background(), "example.com"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := a.Delete(context.Background(), "missing-id"); err != nil {
		t.Fatalf("delete of missing id must not error: %v", err)
	}

	all, _ := store.LoadBookmarks()
	if len(all) != 1 {
		t.Errorf("expected collection unchanged, got %d entries", len(all))
	}
}

func TestApp_VisibleFiltersAndSorts(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	first, err := a.Add(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	second, err := a.Add(context.Background(), "go.dev")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	visible := a.Visible("")
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible bookmarks, got %d", len(visible))
	}
	if visible[0].ID != second.ID || visible[1].ID != first.ID {
		t.Error("expected newest-first order")
	}

	// Case-insensitive matching against title, url, and tags.
	if got := a.Visible("EXAMPLE"); len(got) != 2 {
		// both bookmarks share the canned "Example Domain" title
		t.Errorf("expected title match, got %d", len(got))
	}
	if got := a.Visible("go.dev"); len(got) != 1 {
		t.Errorf("expected url match, got %d", len(got))
	}
	if got := a.Visible("reference"); len(got) != 2 {
		t.Errorf("expected tag match, got %d", len(got))
	}
	if got := a.Visible("zzz"); len(got) != 0 {
		t.Errorf("expected no match, got %d", len(got))
	}
}

func TestApp_SyncBetweenInstances(t *testing.T) {
	dir := t.TempDir()
	hub := bus.NewMemoryHub()
	analyzer := fixedAnalyzer()

	first := newTestApp(t, storage.NewJSONStorage(dir), hub.Join(), analyzer)
	second := newTestApp(t, storage.NewJSONStorage(dir), hub.Join(), analyzer)

	if _, err := first.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if _, err := second.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}

	added, err := first.Add(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	visible := second.Visible("")
	if len(visible) != 1 || visible[0].ID != added.ID {
		t.Fatalf("expected second instance to see the broadcast bookmark, got %+v", visible)
	}

	if err := second.Delete(context.Background(), added.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(first.Visible("")) != 0 {
		t.Error("expected first instance to see the deletion")
	}
}

func TestApp_SignOutClearsView(t *testing.T) {
	store := storage.NewJSONStorage(t.TempDir())
	hub := bus.NewMemoryHub()
	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if _, err := a.Add(context.Background(), "example.com"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := a.SignOut(); err != nil {
		t.Fatalf("sign out failed: %v", err)
	}
	if a.User() != nil {
		t.Error("expected no current user after sign out")
	}
	if len(a.Visible("")) != 0 {
		t.Error("expected empty view after sign out")
	}

	// Session restore: a fresh instance on the same storage sees no user.
	restored := newTestApp(t, store, hub.Join(), fixedAnalyzer())
	if restored.User() != nil {
		t.Error("expected cleared session to stay cleared")
	}
}

func TestImportMergeSkipsDuplicates(t *testing.T) {
	hub := bus.NewMemoryHub()
	store := storage.NewJSONStorage(t.TempDir())
	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := a.Add(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("add: %v", err)
	}

	imported := []model.Bookmark{
		model.NewBookmark(model.NewBookmarkParams{URL: "https://example.com", Title: "Dupe"}),
		model.NewBookmark(model.NewBookmarkParams{URL: "https://example.org", Title: "Fresh"}),
	}

	added, skipped, err := a.ImportMerge(context.Background(), imported)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if added != 1 || skipped != 1 {
		t.Errorf("added=%d skipped=%d, want 1 and 1", added, skipped)
	}

	visible := a.Visible("")
	if len(visible) != 2 {
		t.Fatalf("expected 2 bookmarks after import, got %d", len(visible))
	}
	for _, b := range visible {
		if b.UserID != "u1" {
			t.Errorf("imported bookmark has userId %q, want u1", b.UserID)
		}
	}
}

func TestImportMergeRequiresSignIn(t *testing.T) {
	hub := bus.NewMemoryHub()
	store := storage.NewJSONStorage(t.TempDir())
	a := newTestApp(t, store, hub.Join(), fixedAnalyzer())

	_, _, err := a.ImportMerge(context.Background(), []model.Bookmark{
		model.NewBookmark(model.NewBookmarkParams{URL: "https://example.com"}),
	})
	if !errors.Is(err, app.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

// gateAnalyzer blocks inside Analyze until released, so a test can hold an
// add in flight.
type gateAnalyzer struct {
	entered chan struct{}
	release chan struct{}
}

func newGateAnalyzer() *gateAnalyzer {
	return &gateAnalyzer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateAnalyzer) Analyze(ctx context.Context, url string) (ai.Result, error) {
	close(g.entered)
	<-g.release
	return ai.Result{
		Analysis: ai.Analysis{Title: "Gated", Summary: "Gated.", Tags: []string{"gate"}},
		Source:   ai.SourceProvider,
	}, nil
}

func TestAddRefusesConcurrentAdd(t *testing.T) {
	hub := bus.NewMemoryHub()
	store := storage.NewJSONStorage(t.TempDir())
	gate := newGateAnalyzer()
	a := newTestApp(t, store, hub.Join(), gate)

	if _, err := a.SignIn("credential"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.Add(context.Background(), "https://slow.example")
		done <- err
	}()

	<-gate.entered
	if !a.Busy() {
		t.Error("expected Busy while an add is in flight")
	}

	if _, err := a.Add(context.Background(), "https://second.example"); !errors.Is(err, app.ErrBusy) {
		t.Errorf("expected ErrBusy for a concurrent add, got %v", err)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	if a.Busy() {
		t.Error("expected Busy cleared after the add finished")
	}
	if len(a.Visible("")) != 1 {
		t.Errorf("expected exactly the first add persisted, got %d", len(a.Visible("")))
	}
}
