package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/smartmarks/smartmarks/internal/ai"
	"github.com/smartmarks/smartmarks/internal/app"
	"github.com/smartmarks/smartmarks/internal/auth"
	"github.com/smartmarks/smartmarks/internal/bus"
	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/exporter"
	"github.com/smartmarks/smartmarks/internal/health"
	"github.com/smartmarks/smartmarks/internal/importer"
	"github.com/smartmarks/smartmarks/internal/logger"
	"github.com/smartmarks/smartmarks/internal/search"
	"github.com/smartmarks/smartmarks/internal/storage"
	"github.com/smartmarks/smartmarks/internal/tui"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "help", "--help", "-h":
			printHelp()
			return
		case "login":
			if len(os.Args) < 3 {
				fmt.Fprintf(os.Stderr, "Usage: smartmarks login <credential>\n")
				os.Exit(1)
			}
			runLogin(os.Args[2])
			return
		case "logout":
			runLogout()
			return
		case "add":
			if len(os.Args) < 3 {
				fmt.Fprintf(os.Stderr, "Usage: smartmarks add <url>\n")
				os.Exit(1)
			}
			runAdd(os.Args[2])
			return
		case "rm":
			if len(os.Args) < 3 {
				fmt.Fprintf(os.Stderr, "Usage: smartmarks rm <id>\n")
				os.Exit(1)
			}
			runRemove(os.Args[2])
			return
		case "list":
			runList()
			return
		case "check":
			runCheck()
			return
		case "import":
			if len(os.Args) < 3 {
				fmt.Fprintf(os.Stderr, "Usage: smartmarks import <file.html>\n")
				os.Exit(1)
			}
			runImport(os.Args[2])
			return
		case "export":
			// Export with optional path
			var outputPath string
			if len(os.Args) >= 3 {
				outputPath = os.Args[2]
			}
			runExport(outputPath)
			return
		default:
			// Treat as search query (join all remaining args)
			query := strings.Join(os.Args[1:], " ")
			runQuickSearch(query)
			return
		}
	}

	// No args - run full TUI
	runTUI()
}

func printHelp() {
	help := `smartmarks - AI-enriched bookmark manager

Usage:
  smartmarks                     Open interactive TUI
  smartmarks <query>             Quick search by title
  smartmarks login <credential>  Sign in with an identity-provider credential
  smartmarks logout              Sign out
  smartmarks add <url>           Add a bookmark (analyzed by the AI provider)
  smartmarks rm <id>             Remove a bookmark by id
  smartmarks list                List your bookmarks, newest first
  smartmarks check               Check your bookmarks for dead links
  smartmarks import <file>       Import bookmarks from Netscape HTML
  smartmarks export [path]       Export your bookmarks to Netscape HTML
  smartmarks help                Show this help

TUI Keybindings:
  j/k         Move down/up
  g/G         Jump to top/bottom
  a           Add bookmark
  d           Delete selected
  o/Enter     Open in browser
  Y           Copy URL to clipboard
  /           Search
  q           Quit

Configuration:
  ~/.config/smartmarks/config.yaml

Environment:
  ANTHROPIC_API_KEY   Required when ai.provider is "anthropic"
  GEMINI_API_KEY      Required when ai.provider is "gemini"
`
	fmt.Print(help)
}

// env bundles everything a subcommand needs.
type env struct {
	cfg        *config.Config
	log        logger.Logger
	controller *app.App
	closeBus   func()
}

// setup loads config and wires storage, sync bus, and credential parsing into
// a controller. The enrichment client is only constructed when withAnalyzer
// is set, so commands that never analyze work without provider credentials.
func setup(ctx context.Context, withAnalyzer, tuiMode bool) (*env, error) {
	configPath, err := config.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var log logger.Logger
	if tuiMode {
		// Logging to the terminal would corrupt the TUI.
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		log, err = logger.NewFile(filepath.Join(dir, "smartmarks.log"), cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
	} else {
		log = logger.New(cfg.Log.Level, true)
	}

	store, err := storage.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var syncBus bus.Bus
	closeBus := func() {}
	if cfg.Sync.Backend == "redis" {
		redisBus, err := bus.NewRedisBus(ctx, cfg.Sync.RedisAddr, log)
		if err != nil {
			return nil, fmt.Errorf("connect sync bus: %w", err)
		}
		syncBus = redisBus
		closeBus = func() { _ = redisBus.Close() }
	} else {
		mem := bus.NewMemoryHub().Join()
		syncBus = mem
		closeBus = mem.Leave
	}

	var analyzer ai.Analyzer
	if withAnalyzer {
		analyzer, err = newAnalyzer(ctx, cfg)
		if err != nil {
			closeBus()
			return nil, err
		}
	}

	parse := auth.NewVerifier(cfg.Auth.JWKSURL, cfg.Auth.ClientID).Verify
	if cfg.Auth.InsecureSkipVerify {
		parse = auth.ParseInsecure
	}

	controller, err := app.New(app.Params{
		Storage:         store,
		Bus:             syncBus,
		Analyzer:        analyzer,
		Logger:          log,
		ParseCredential: parse,
	})
	if err != nil {
		closeBus()
		return nil, err
	}

	return &env{cfg: cfg, log: log, controller: controller, closeBus: closeBus}, nil
}

func (e *env) close() {
	e.controller.Close()
	e.closeBus()
	_ = e.log.Sync()
}

func newAnalyzer(ctx context.Context, cfg *config.Config) (ai.Analyzer, error) {
	switch cfg.AI.Provider {
	case "gemini":
		return ai.NewGeminiClient(ctx, cfg.AI.Model)
	default:
		var opts []ai.ClientOption
		if cfg.AI.Model != "" {
			opts = append(opts, ai.WithModel(cfg.AI.Model))
		}
		opts = append(opts, ai.WithTimeout(cfg.AI.Timeout()))
		return ai.NewClient(opts...)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// runTUI runs the full interactive TUI.
func runTUI() {
	ctx := context.Background()
	e, err := setup(ctx, true, true)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if err := tui.Run(e.controller); err != nil {
		fatal(err)
	}
}

// runLogin handles the login subcommand.
func runLogin(credential string) {
	e, err := setup(context.Background(), false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	user, err := e.controller.SignIn(credential)
	if err != nil {
		fatal(fmt.Errorf("sign in: %w", err))
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Printf("Signed in as %s\n", name)
}

// runLogout handles the logout subcommand.
func runLogout() {
	e, err := setup(context.Background(), false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if err := e.controller.SignOut(); err != nil {
		fatal(err)
	}
	fmt.Println("Signed out.")
}

// runAdd handles the add subcommand.
func runAdd(rawURL string) {
	ctx := context.Background()
	e, err := setup(ctx, true, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	bookmark, err := e.controller.Add(ctx, rawURL)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Added %q\n", bookmark.Title)
	fmt.Printf("  %s\n", bookmark.URL)
	if len(bookmark.Tags) > 0 {
		fmt.Printf("  #%s\n", strings.Join(bookmark.Tags, " #"))
	}
	fmt.Printf("  id: %s\n", bookmark.ID)
}

// runRemove handles the rm subcommand.
func runRemove(id string) {
	e, err := setup(context.Background(), false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if err := e.controller.Delete(context.Background(), id); err != nil {
		fatal(err)
	}
	fmt.Printf("Removed %s\n", id)
}

// runList handles the list subcommand.
func runList() {
	e, err := setup(context.Background(), false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if e.controller.User() == nil {
		fmt.Println("Not signed in. Run: smartmarks login <credential>")
		return
	}

	bookmarks := e.controller.Visible("")
	if len(bookmarks) == 0 {
		fmt.Println("No bookmarks yet.")
		return
	}

	for _, b := range bookmarks {
		fmt.Printf("%s  %s\n", b.Title, b.URL)
		if len(b.Tags) > 0 {
			fmt.Printf("    #%s\n", strings.Join(b.Tags, " #"))
		}
		fmt.Printf("    id: %s\n", b.ID)
	}
}

// runCheck handles the check subcommand.
func runCheck() {
	ctx := context.Background()
	e, err := setup(ctx, false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if e.controller.User() == nil {
		fatal(app.ErrNotSignedIn)
	}

	bookmarks := e.controller.Visible("")
	if len(bookmarks) == 0 {
		fmt.Println("No bookmarks to check.")
		return
	}

	fmt.Printf("Checking %d bookmarks...\n", len(bookmarks))
	results := health.Check(ctx, bookmarks, health.Options{
		OnProgress: func(completed, total int) {
			fmt.Printf("\r%d/%d", completed, total)
		},
	})
	fmt.Println()

	healthy := 0
	for _, r := range results {
		switch r.Status {
		case health.StatusOK:
			healthy++
		case health.StatusDead:
			fmt.Printf("DEAD         %s (%s)\n", r.Bookmark.URL, r.Detail)
		case health.StatusUnreachable:
			fmt.Printf("UNREACHABLE  %s (%s)\n", r.Bookmark.URL, r.Detail)
		}
	}
	fmt.Printf("%d healthy, %d with problems\n", healthy, len(results)-healthy)
}

// runQuickSearch performs a fuzzy title search. A single match opens in the
// browser; multiple matches are listed.
func runQuickSearch(query string) {
	e, err := setup(context.Background(), false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if e.controller.User() == nil {
		fmt.Println("Not signed in. Run: smartmarks login <credential>")
		os.Exit(1)
	}

	results := search.FuzzyByTitle(e.controller.Visible(""), query)
	if len(results) == 0 {
		fmt.Printf("No bookmarks found for '%s'\n", query)
		return
	}

	if len(results) == 1 {
		b := results[0].Bookmark
		fmt.Printf("Opening: %s\n", b.Title)
		openURL(b.URL)
		return
	}

	for _, r := range results {
		fmt.Printf("%s  %s\n", r.Bookmark.Title, r.Bookmark.URL)
	}
}

// runImport handles the import subcommand.
func runImport(filePath string) {
	ctx := context.Background()
	e, err := setup(ctx, false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	user := e.controller.User()
	if user == nil {
		fatal(app.ErrNotSignedIn)
	}

	file, err := os.Open(filePath)
	if err != nil {
		fatal(fmt.Errorf("open file: %w", err))
	}
	defer file.Close()

	bookmarks, err := importer.ParseHTMLBookmarks(file, user.ID)
	if err != nil {
		fatal(fmt.Errorf("parse HTML: %w", err))
	}

	added, skipped, err := e.controller.ImportMerge(ctx, bookmarks)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Imported %d bookmarks", added)
	if skipped > 0 {
		fmt.Printf(" (%d duplicates skipped)", skipped)
	}
	fmt.Println()
}

// runExport handles the export subcommand.
func runExport(outputPath string) {
	e, err := setup(context.Background(), false, false)
	if err != nil {
		fatal(err)
	}
	defer e.close()

	if e.controller.User() == nil {
		fatal(app.ErrNotSignedIn)
	}

	if outputPath == "" {
		outputPath, err = exporter.DefaultExportPath()
		if err != nil {
			fatal(fmt.Errorf("resolve export path: %w", err))
		}
	}

	bookmarks := e.controller.Visible("")
	html := exporter.ExportHTML(bookmarks)

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		fatal(fmt.Errorf("write file: %w", err))
	}

	fmt.Printf("Exported %d bookmarks to %s\n", len(bookmarks), outputPath)
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}
