package model

import (
	"sort"
	"strings"
	"time"
)

// Bookmark represents a saved URL with AI-derived metadata, owned by one user.
type Bookmark struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UserID      string    `json:"userId"`
}

// NewBookmarkParams holds parameters for creating a new Bookmark.
type NewBookmarkParams struct {
	URL         string
	Title       string
	Description string
	Tags        []string
	UserID      string
}

// NewBookmark creates a Bookmark with generated UUID and creation timestamp.
func NewBookmark(params NewBookmarkParams) Bookmark {
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	return Bookmark{
		ID:          generateUUID(),
		URL:         params.URL,
		Title:       params.Title,
		Description: params.Description,
		Tags:        tags,
		CreatedAt:   time.Now(),
		UserID:      params.UserID,
	}
}

// Matches reports whether the bookmark matches the query with a
// case-insensitive substring check against title, URL, or any tag.
// An empty query matches everything.
func (b Bookmark) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)

	if strings.Contains(strings.ToLower(b.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(b.URL), q) {
		return true
	}
	for _, tag := range b.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// FilterByUser returns the bookmarks owned by the given user,
// preserving relative order.
func FilterByUser(bookmarks []Bookmark, userID string) []Bookmark {
	result := []Bookmark{}
	for _, b := range bookmarks {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	return result
}

// Remove returns the collection without the bookmark carrying the given ID.
// Removing an ID that is not present leaves the collection unchanged.
func Remove(bookmarks []Bookmark, id string) []Bookmark {
	result := make([]Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.ID != id {
			result = append(result, b)
		}
	}
	return result
}

// SortByNewest sorts bookmarks in place by descending creation time.
func SortByNewest(bookmarks []Bookmark) {
	sort.SliceStable(bookmarks, func(i, j int) bool {
		return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
	})
}
