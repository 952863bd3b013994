package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"
	"github.com/taxilian/tplan/internal/config"
	"github.com/taxilian/tplan/internal/controller"
	"github.com/taxilian/tplan/internal/format"
	"github.com/taxilian/tplan/internal/gateway"
	"github.com/taxilian/tplan/internal/model"
	"github.com/taxilian/tplan/internal/nav"
	"github.com/taxilian/tplan/internal/prefs"
	"github.com/taxilian/tplan/internal/report"
	"github.com/taxilian/tplan/internal/tui"
)

// version is set via ldflags at build time, or read from module info
var version = "dev"

func init() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	rootCmd.Version = version
}

var (
	flagServer  string
	flagYAML    bool
	flagYes     bool
	flagTitle   string
	flagMessage string
	flagDepth   int
	flagRaw     bool
)

// loadConfig reads the project config; commands fail with a hint when it is missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.Server.BaseURL = flagServer
	}
	return cfg, nil
}

func newClient(cfg *config.Config, logger *log.Logger) (*gateway.Client, error) {
	return gateway.New(gateway.Options{
		BaseURL: cfg.Server.BaseURL,
		Token:   cfg.Server.Token,
		Timeout: cfg.Timeout(),
		Logger:  logger,
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var rootCmd = &cobra.Command{
	Use:     "tplan",
	Short:   "Terminal client for a hierarchical project/task server",
	Version: version,
	Long: `Browse and edit a tree of projects and tasks kept on a remote server.

Config: .tplan/config.toml (in project root)

Quick start:
  tplan init --server https://plan.example.com/api
  tplan            # interactive UI
  tplan ls 12      # children of item 12
  tplan done 34

Use 'tplan [command] --help' for detailed help on any command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .tplan config in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		base := flagServer
		if base == "" {
			base = config.DefaultBaseURL
		}
		path, err := config.InitProject(base)
		if err != nil {
			return err
		}
		fmt.Printf("Config at %s\n", path)
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"ui"},
	Short:   "Launch interactive terminal UI",
	Long: `Launch an interactive terminal UI for the item tree.

Navigation:
  j/k or arrows    Move cursor up/down
  enter or l       Open the selected item
  backspace or h   Go back one level
  0-9              Jump to a breadcrumb

Editing:
  e   Toggle edit mode on the selected row (saves on exit)
  t/d Edit title/description while editing
  p/f Set progress / cycle difficulty while editing
  K   Switch between task and project while editing
  n   Add a draft row, press again to create it
  x   Toggle completion
  c   Set color
  D   Delete (asks for confirmation)

Other:
  m   Managers of the selected item
  R   AI progress report for the selected item
  v   Toggle board/table view
  r   Refresh

Press q to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The alternate screen owns stdout, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := log.New(logFile, "", log.LstdFlags)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	reloads := make(chan error, 1)
	history := nav.NewHistory(nav.Entry{Locator: cfg.Client.RootLocator, Title: cfg.Client.RootTitle})
	ctrl := controller.New(client, history, controller.Options{
		Logger:         logger,
		ReloadDebounce: cfg.ReloadDebounce(),
		OnReload: func(err error) {
			select {
			case reloads <- err:
			default:
				// A result is already pending; the UI reads the store, not the error.
			}
		},
	})
	defer ctrl.Close()

	store, err := prefs.Open(cfg.PrefsPath())
	if err != nil {
		logger.Printf("[prefs] warning: %v, using defaults", err)
		store = nil
	} else {
		defer func() { _ = store.Close() }()
	}

	deps := tui.Deps{
		Controller:  ctrl,
		Reloads:     reloads,
		Permissions: client,
		Lister:      client,
		Prefs:       store,
		Logger:      logger,
	}
	if gen, err := report.NewAnthropicGenerator(cfg.Report.APIKey, cfg.Report.Model, cfg.Report.MaxTokens); err == nil {
		deps.Reporter = gen
	}
	return tui.Run(deps)
}

var reportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Generate an AI progress report for an item's subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := model.ParseItemID(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cfg, log.Default())
		if err != nil {
			return err
		}
		gen, err := report.NewAnthropicGenerator(cfg.Report.APIKey, cfg.Report.Model, cfg.Report.MaxTokens)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), 2*time.Minute)
		defer cancel()
		root := model.Item{ID: id, Attributes: model.Attributes{Kind: model.KindProject, Title: model.StringPtr("#" + id.String())}}
		tree, err := report.Collect(ctx, client, root, flagDepth)
		if err != nil {
			return err
		}
		text, err := gen.Generate(ctx, tree)
		if err != nil {
			return err
		}
		if flagRaw {
			fmt.Println(text)
			return nil
		}
		fmt.Println(format.Markdown(text, 100))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server base URL (overrides config)")

	lsCmd.Flags().BoolVar(&flagYAML, "yaml", false, "Print items as YAML")
	rmCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Skip the confirmation prompt")
	inviteCmd.Flags().StringVar(&flagTitle, "title", "", "Invitation title")
	inviteCmd.Flags().StringVar(&flagMessage, "message", "", "Invitation message")
	reportCmd.Flags().BoolVar(&flagRaw, "raw", false, "Print the report markdown without rendering")
	reportCmd.Flags().IntVar(&flagDepth, "depth", report.DefaultMaxDepth, "How many levels below the item to include")
	for _, c := range capabilityFlags {
		grantCmd.Flags().Bool(c.name, false, c.usage)
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(colorCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(managersCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(prefsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
