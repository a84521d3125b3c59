package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smartmarks/smartmarks/internal/app"
	"github.com/smartmarks/smartmarks/internal/model"
)

// Mode is the current input mode of the TUI.
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd         // URL input focused
	ModeSearch      // search input focused
)

// syncMsg signals that another instance changed the collection.
type syncMsg struct{}

// addDoneMsg carries the outcome of an add operation.
type addDoneMsg struct {
	bookmark model.Bookmark
	err      error
}

// App is the main bubbletea model for the bookmark manager.
type App struct {
	controller *app.App
	keys       KeyMap
	styles     Styles

	mode        Mode
	urlInput    textinput.Model
	searchInput textinput.Model
	spinner     spinner.Model
	analyzing   bool

	cursor  int
	visible []model.Bookmark

	status   string
	statusIs error

	width  int
	height int
}

// AppParams holds parameters for creating a new App.
type AppParams struct {
	Controller *app.App
	Keys       *KeyMap // optional, uses default if nil
	Styles     *Styles // optional, uses default if nil
}

// NewApp creates a new App with the given parameters.
func NewApp(params AppParams) App {
	keys := DefaultKeyMap()
	if params.Keys != nil {
		keys = *params.Keys
	}

	styles := DefaultStyles()
	if params.Styles != nil {
		styles = *params.Styles
	}

	urlInput := textinput.New()
	urlInput.Placeholder = "Paste website URL..."
	urlInput.CharLimit = 2048
	urlInput.Width = 60

	searchInput := textinput.New()
	searchInput.Placeholder = "Search bookmarks..."
	searchInput.CharLimit = 256
	searchInput.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	a := App{
		controller:  params.Controller,
		keys:        keys,
		styles:      styles,
		urlInput:    urlInput,
		searchInput: searchInput,
		spinner:     sp,
		width:       80,
		height:      24,
	}
	a.refresh()
	return a
}

// refresh rebuilds the visible list from the controller.
func (a *App) refresh() {
	a.visible = a.controller.Visible(a.searchInput.Value())
	if a.cursor >= len(a.visible) {
		a.cursor = len(a.visible) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case syncMsg:
		a.refresh()
		return a, nil

	case addDoneMsg:
		a.analyzing = false
		if msg.err != nil {
			a.status = "Failed to analyze link."
			a.statusIs = msg.err
		} else {
			a.status = fmt.Sprintf("Added %q", msg.bookmark.Title)
			a.statusIs = nil
			a.urlInput.Reset()
			a.mode = ModeNormal
			a.urlInput.Blur()
		}
		a.refresh()
		return a, nil

	case spinner.TickMsg:
		if !a.analyzing {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		switch a.mode {
		case ModeAdd:
			return a.updateAddMode(msg)
		case ModeSearch:
			return a.updateSearchMode(msg)
		default:
			return a.updateNormalMode(msg)
		}
	}

	return a, nil
}

func (a App) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.visible)-1 {
			a.cursor++
		}

	case key.Matches(msg, a.keys.Top):
		a.cursor = 0

	case key.Matches(msg, a.keys.Bottom):
		if len(a.visible) > 0 {
			a.cursor = len(a.visible) - 1
		}

	case key.Matches(msg, a.keys.Add):
		// The add affordance is disabled while an analysis is in flight.
		if a.analyzing {
			return a, nil
		}
		a.mode = ModeAdd
		a.urlInput.Focus()
		return a, textinput.Blink

	case key.Matches(msg, a.keys.Search):
		a.mode = ModeSearch
		a.searchInput.Focus()
		return a, textinput.Blink

	case key.Matches(msg, a.keys.Delete):
		if b, ok := a.selected(); ok {
			if err := a.controller.Delete(context.Background(), b.ID); err != nil {
				a.status = "Failed to delete bookmark."
				a.statusIs = err
			} else {
				a.status = fmt.Sprintf("Deleted %q", b.Title)
				a.statusIs = nil
			}
			a.refresh()
		}

	case key.Matches(msg, a.keys.YankURL):
		if b, ok := a.selected(); ok {
			if err := clipboard.WriteAll(b.URL); err != nil {
				a.status = "Failed to copy URL."
				a.statusIs = err
			} else {
				a.status = "URL copied to clipboard"
				a.statusIs = nil
			}
		}

	case key.Matches(msg, a.keys.Open):
		if b, ok := a.selected(); ok {
			if err := openBrowser(b.URL); err != nil {
				a.status = "Failed to open browser."
				a.statusIs = err
			}
		}
	}

	return a, nil
}

func (a App) updateAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.mode = ModeNormal
		a.urlInput.Blur()
		return a, nil

	case key.Matches(msg, a.keys.Confirm):
		if a.analyzing {
			return a, nil
		}
		raw := a.urlInput.Value()
		if raw == "" {
			return a, nil
		}
		a.analyzing = true
		a.status = ""
		return a, tea.Batch(a.spinner.Tick, a.addCmd(raw))
	}

	var cmd tea.Cmd
	a.urlInput, cmd = a.urlInput.Update(msg)
	return a, cmd
}

func (a App) updateSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.searchInput.Reset()
		a.searchInput.Blur()
		a.mode = ModeNormal
		a.refresh()
		return a, nil

	case key.Matches(msg, a.keys.Confirm):
		a.searchInput.Blur()
		a.mode = ModeNormal
		return a, nil
	}

	// Filter recomputes on every keystroke.
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	a.refresh()
	return a, cmd
}

// addCmd runs the add flow off the update loop.
func (a App) addCmd(raw string) tea.Cmd {
	controller := a.controller
	return func() tea.Msg {
		b, err := controller.Add(context.Background(), raw)
		return addDoneMsg{bookmark: b, err: err}
	}
}

// selected returns the bookmark under the cursor.
func (a App) selected() (model.Bookmark, bool) {
	if a.cursor < 0 || a.cursor >= len(a.visible) {
		return model.Bookmark{}, false
	}
	return a.visible[a.cursor], true
}

// View implements tea.Model.
func (a App) View() string {
	return a.renderView()
}

// Run starts the TUI program for a signed-in controller.
func Run(controller *app.App) error {
	p := tea.NewProgram(NewApp(AppParams{Controller: controller}), tea.WithAltScreen())

	// Route sync broadcasts from other instances into the message loop.
	controller.SetOnChange(func() {
		p.Send(syncMsg{})
	})
	defer controller.SetOnChange(nil)

	_, err := p.Run()
	return err
}

// openBrowser opens the URL with the platform opener.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
