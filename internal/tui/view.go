package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/smartmarks/smartmarks/internal/model"
)

// renderView assembles the full screen: header, inputs, card list, status,
// and help bar.
func (a App) renderView() string {
	sections := []string{
		a.renderHeader(),
		a.renderInputs(),
		a.renderList(),
		a.renderStatus(),
		a.renderHelpBar(),
	}

	content := a.styles.App.Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
	return lipgloss.Place(a.width, a.height, lipgloss.Left, lipgloss.Top, content)
}

func (a App) renderHeader() string {
	user := a.controller.User()
	if user == nil {
		return a.styles.Header.Render("smartmarks") + "\n" +
			a.styles.Empty.Render("Not signed in. Run: smartmarks login <credential>") + "\n"
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	return a.styles.Header.Render("smartmarks") + "  " +
		a.styles.UserName.Render(name) + "\n"
}

func (a App) renderInputs() string {
	var b strings.Builder

	if a.analyzing {
		b.WriteString(a.spinner.View())
		b.WriteString(" Analyzing ")
		b.WriteString(a.styles.URL.Render(a.urlInput.Value()))
		b.WriteString("...")
	} else if a.mode == ModeAdd {
		b.WriteString(a.urlInput.View())
	}

	if a.mode == ModeSearch || a.searchInput.Value() != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.searchInput.View())
	}

	if b.Len() == 0 {
		return ""
	}
	b.WriteString("\n")
	return b.String()
}

func (a App) renderList() string {
	if a.controller.User() == nil {
		return ""
	}

	if len(a.visible) == 0 {
		if a.searchInput.Value() != "" {
			return a.styles.Empty.Render("No bookmarks found.") + "\n"
		}
		return a.styles.Empty.Render("No bookmarks yet. Press 'a' to add one.") + "\n"
	}

	cards := make([]string, 0, len(a.visible))
	for i, bookmark := range a.visible {
		cards = append(cards, a.renderCard(bookmark, i == a.cursor))
	}
	return strings.Join(cards, "\n")
}

func (a App) renderCard(b model.Bookmark, selected bool) string {
	var lines []string

	lines = append(lines, a.styles.Title.Render(b.Title))
	lines = append(lines, a.styles.URL.Render(truncate(b.URL, a.width-8)))
	if b.Description != "" {
		lines = append(lines, a.styles.Description.Render(truncate(b.Description, a.width-8)))
	}

	meta := a.styles.Date.Render(relativeTime(b.CreatedAt))
	if len(b.Tags) > 0 {
		tags := make([]string, len(b.Tags))
		for i, tag := range b.Tags {
			tags[i] = a.styles.Tag.Render("#" + tag)
		}
		meta = strings.Join(tags, " ") + "  " + meta
	}
	lines = append(lines, meta)

	card := strings.Join(lines, "\n")
	if selected {
		return a.styles.CardSelected.Render(card)
	}
	return a.styles.Card.Render(card)
}

func (a App) renderStatus() string {
	if a.status == "" {
		return ""
	}
	if a.statusIs != nil {
		return "\n" + a.styles.StatusError.Render(a.status)
	}
	return "\n" + a.styles.Status.Render(a.status)
}

func (a App) renderHelpBar() string {
	hints := [][2]string{
		{"a", "add"},
		{"d", "delete"},
		{"/", "search"},
		{"o", "open"},
		{"Y", "copy URL"},
		{"q", "quit"},
	}

	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts,
			a.styles.HintKey.Render(h[0])+" "+a.styles.HintDesc.Render(h[1]))
	}
	return "\n" + strings.Join(parts, "  ")
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// relativeTime renders a timestamp as a coarse "time ago" label.
func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
