// Package app wires storage, the sync bus, and the enrichment client into
// the add/delete/search flows. Persisted mutation writes only the records
// each operation touched and deletes by explicit id, so every bookmark not
// explicitly added or removed survives, including other users' and those
// written concurrently by another instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smartmarks/smartmarks/internal/ai"
	"github.com/smartmarks/smartmarks/internal/bus"
	"github.com/smartmarks/smartmarks/internal/logger"
	"github.com/smartmarks/smartmarks/internal/model"
	"github.com/smartmarks/smartmarks/internal/storage"
)

var (
	ErrInvalidURL  = errors.New("invalid URL")
	ErrNotSignedIn = errors.New("not signed in")
	// ErrBusy rejects a second add while an enrichment call is in flight.
	// The guard is per-instance only; instances do not serialize against
	// each other.
	ErrBusy = errors.New("another add is in progress")
)

// Params holds the collaborators for a new App.
type Params struct {
	Storage  storage.Storage
	Bus      bus.Bus
	Analyzer ai.Analyzer
	Logger   logger.Logger

	// ParseCredential turns an identity-provider credential string into a
	// User. Wired to auth.Verifier.Verify or auth.ParseInsecure.
	ParseCredential func(credential string) (*model.User, error)

	// OnChange, when set, is invoked after the in-memory view changes from
	// a sync broadcast. Used by the TUI to trigger a redraw.
	OnChange func()
}

// App owns the in-memory state of one running instance.
type App struct {
	storage  storage.Storage
	bus      bus.Bus
	analyzer ai.Analyzer
	log      logger.Logger
	parse    func(string) (*model.User, error)
	onChange func()

	mu          sync.Mutex
	user        *model.User
	bookmarks   []model.Bookmark // current user's view, unsorted
	busy        bool
	unsubscribe func()
}

// New creates an App, restores any persisted session, and subscribes to the
// sync bus.
func New(params Params) (*App, error) {
	log := params.Logger
	if log == nil {
		log = logger.NewNop()
	}

	a := &App{
		storage:  params.Storage,
		bus:      params.Bus,
		analyzer: params.Analyzer,
		log:      log,
		parse:    params.ParseCredential,
		onChange: params.OnChange,
	}

	user, err := params.Storage.LoadUser()
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		a.user = user
		if err := a.reload(); err != nil {
			return nil, err
		}
	}

	a.unsubscribe = params.Bus.Subscribe(a.onSync)
	return a, nil
}

// SetOnChange replaces the change callback after construction. The TUI uses
// this to route sync updates into its message loop.
func (a *App) SetOnChange(fn func()) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Close deregisters the bus subscription. Safe to call more than once.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// User returns the signed-in user, nil when signed out.
func (a *App) User() *model.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Busy reports whether an add operation is in flight.
func (a *App) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

// SignIn establishes the current user from a provider credential and loads
// their bookmarks.
func (a *App) SignIn(credential string) (*model.User, error) {
	user, err := a.parse(credential)
	if err != nil {
		return nil, err
	}

	if err := a.storage.SaveUser(user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	a.mu.Lock()
	a.user = user
	a.mu.Unlock()

	if err := a.reload(); err != nil {
		return nil, err
	}

	a.log.Info("signed in", logger.String("user", user.ID))
	return user, nil
}

// SignOut clears the persisted session and the in-memory view.
func (a *App) SignOut() error {
	if err := a.storage.SaveUser(nil); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}

	a.mu.Lock()
	a.user = nil
	a.bookmarks = nil
	a.mu.Unlock()
	return nil
}

// NormalizeURL validates raw input and returns the absolute URL to store.
// Input lacking an http-prefixed scheme is treated exactly as if it had
// been submitted with a https:// prefix.
func NormalizeURL(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidURL
	}

	normalized := raw
	if !strings.HasPrefix(raw, "http") {
		normalized = "https://" + raw
	}

	u, err := url.Parse(normalized)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidURL
	}
	return normalized, nil
}

// Add validates the URL, enriches it via the provider, persists the new
// bookmark, and broadcasts the updated collection. Only one add may be in
// flight per instance.
func (a *App) Add(ctx context.Context, raw string) (model.Bookmark, error) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return model.Bookmark{}, ErrNotSignedIn
	}
	if a.busy {
		a.mu.Unlock()
		return model.Bookmark{}, ErrBusy
	}
	userID := a.user.ID
	a.busy = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.busy = false
		a.mu.Unlock()
	}()

	normalized, err := NormalizeURL(raw)
	if err != nil {
		return model.Bookmark{}, err
	}

	analyzeStart := time.Now()
	result, err := a.analyzer.Analyze(ctx, normalized)
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("analyze link: %w", err)
	}
	if result.Source == ai.SourceFallback {
		a.log.Warn("enrichment fell back to default metadata",
			logger.String("url", normalized),
			logger.String("reason", result.Reason))
	}

	bookmark := model.NewBookmark(model.NewBookmarkParams{
		URL:         normalized,
		Title:       result.Analysis.Title,
		Description: result.Analysis.Summary,
		Tags:        result.Analysis.Tags,
		UserID:      userID,
	})

	// Persist only the new record; the storage layer merges by id, so a
	// stale view of the collection cannot overwrite concurrent writes.
	if err := a.storage.SaveBookmarks([]model.Bookmark{bookmark}); err != nil {
		return model.Bookmark{}, fmt.Errorf("save bookmarks: %w", err)
	}

	// Broadcast the full collection as persisted after this write.
	all, err := a.storage.LoadBookmarks()
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("load bookmarks: %w", err)
	}
	if err := a.bus.Publish(ctx, all); err != nil {
		a.log.Warn("sync publish failed", logger.Error(err))
	}

	a.mu.Lock()
	a.bookmarks = append([]model.Bookmark{bookmark}, a.bookmarks...)
	a.mu.Unlock()

	a.log.Info("bookmark added",
		logger.String("id", bookmark.ID),
		logger.String("url", bookmark.URL),
		logger.Duration("analyze", time.Since(analyzeStart)))
	return bookmark, nil
}

// Delete removes one bookmark by id from the persisted collection and the
// in-memory view. An id not present in the collection is a no-op.
func (a *App) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return ErrNotSignedIn
	}
	a.mu.Unlock()

	all, err := a.storage.LoadBookmarks()
	if err != nil {
		return fmt.Errorf("load bookmarks: %w", err)
	}

	remaining := model.Remove(all, id)
	if len(remaining) == len(all) {
		return nil
	}

	if err := a.storage.DeleteBookmark(id); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}

	if err := a.bus.Publish(ctx, remaining); err != nil {
		a.log.Warn("sync publish failed", logger.Error(err))
	}

	a.mu.Lock()
	a.bookmarks = model.Remove(a.bookmarks, id)
	a.mu.Unlock()

	a.log.Info("bookmark deleted", logger.String("id", id))
	return nil
}

// ImportMerge appends imported bookmarks to the collection, skipping URLs
// the current user already has. Returns the number added and skipped.
func (a *App) ImportMerge(ctx context.Context, imported []model.Bookmark) (int, int, error) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return 0, 0, ErrNotSignedIn
	}
	userID := a.user.ID
	a.mu.Unlock()

	all, err := a.storage.LoadBookmarks()
	if err != nil {
		return 0, 0, fmt.Errorf("load bookmarks: %w", err)
	}

	seen := make(map[string]bool)
	for _, b := range all {
		if b.UserID == userID {
			seen[b.URL] = true
		}
	}

	fresh := make([]model.Bookmark, 0, len(imported))
	skipped := 0
	for _, b := range imported {
		if seen[b.URL] {
			skipped++
			continue
		}
		b.UserID = userID
		seen[b.URL] = true
		fresh = append(fresh, b)
	}

	if len(fresh) == 0 {
		return 0, skipped, nil
	}

	if err := a.storage.SaveBookmarks(fresh); err != nil {
		return 0, 0, fmt.Errorf("save bookmarks: %w", err)
	}

	all = append(all, fresh...)
	if err := a.bus.Publish(ctx, all); err != nil {
		a.log.Warn("sync publish failed", logger.Error(err))
	}

	a.mu.Lock()
	a.bookmarks = model.FilterByUser(all, userID)
	a.mu.Unlock()

	a.log.Info("bookmarks imported", logger.Int("added", len(fresh)), logger.Int("skipped", skipped))
	return len(fresh), skipped, nil
}

// Visible returns the current user's bookmarks matching the query,
// newest first. Filtering never touches persisted state.
func (a *App) Visible(query string) []model.Bookmark {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := []model.Bookmark{}
	for _, b := range a.bookmarks {
		if b.Matches(query) {
			result = append(result, b)
		}
	}
	model.SortByNewest(result)
	return result
}

// reload replaces the in-memory view from persisted state.
func (a *App) reload() error {
	a.mu.Lock()
	user := a.user
	a.mu.Unlock()
	if user == nil {
		return nil
	}

	all, err := a.storage.LoadBookmarks()
	if err != nil {
		return fmt.Errorf("load bookmarks: %w", err)
	}

	a.mu.Lock()
	a.bookmarks = model.FilterByUser(all, user.ID)
	a.mu.Unlock()
	return nil
}

// onSync handles a broadcast from another instance: re-filter the full
// collection to the signed-in user and swap the in-memory view.
func (a *App) onSync(all []model.Bookmark) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return
	}
	a.bookmarks = model.FilterByUser(all, a.user.ID)
	notify := a.onChange
	a.mu.Unlock()

	if notify != nil {
		notify()
	}
}
