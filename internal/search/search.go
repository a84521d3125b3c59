package search

import (
	"github.com/sahilm/fuzzy"
	"github.com/smartmarks/smartmarks/internal/model"
)

// Result represents a fuzzy search match.
type Result struct {
	Bookmark       *model.Bookmark
	MatchedIndexes []int
	Score          int
}

// bookmarkTitles implements fuzzy.Source for a bookmark slice.
type bookmarkTitles []*model.Bookmark

func (bt bookmarkTitles) String(i int) string {
	return bt[i].Title
}

func (bt bookmarkTitles) Len() int {
	return len(bt)
}

// FuzzyByTitle searches bookmarks by title using fuzzy matching.
// Returns results sorted by match score (best first). Used by the one-shot
// CLI search; the in-app filter is a plain substring match instead.
func FuzzyByTitle(bookmarks []model.Bookmark, query string) []Result {
	if query == "" {
		return nil
	}

	candidates := make(bookmarkTitles, len(bookmarks))
	for i := range bookmarks {
		candidates[i] = &bookmarks[i]
	}

	matches := fuzzy.FindFrom(query, candidates)

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Bookmark:       candidates[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}

	return results
}

// Filter returns the bookmarks matching the query with the case-insensitive
// substring semantics of the in-app search box.
func Filter(bookmarks []model.Bookmark, query string) []model.Bookmark {
	result := []model.Bookmark{}
	for _, b := range bookmarks {
		if b.Matches(query) {
			result = append(result, b)
		}
	}
	return result
}
