package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justchokingaround/vidbridge/internal/clipboard"
	"github.com/justchokingaround/vidbridge/internal/config"
	"github.com/justchokingaround/vidbridge/internal/database"
	"github.com/justchokingaround/vidbridge/internal/playback"
	"github.com/justchokingaround/vidbridge/internal/playback/mpv"
	"github.com/justchokingaround/vidbridge/internal/session"
	"github.com/justchokingaround/vidbridge/internal/source"
	"github.com/justchokingaround/vidbridge/internal/tui"
	"github.com/justchokingaround/vidbridge/internal/tui/utils"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool

	// Global config and logger
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vidbridge [url]",
	Short: "A terminal video player bridging mpv with resumable sessions",
	Long: `vidbridge plays a video URL or local file through mpv and gives you a
compact terminal controller: play/pause, seeking, volume, and live
position tracking.

Playback progress is saved automatically, so replaying a source picks
up where you left off.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config init command
		if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		// Initialize directories before config load
		if err := config.InitializeDirs(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize directories: %v\n", err)
			os.Exit(1)
		}

		var err error
		var v *viper.Viper
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		// Setup hot reload
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("Config file changed", "name", e.Name)
			if err := v.Unmarshal(&cfg); err != nil {
				logger.Error("Failed to reload config", "error", err)
			}
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := database.Close(); err != nil && logger != nil {
			logger.Error("failed to close database", "error", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runPlay(cmd, args[0])
	},
}

var playCmd = &cobra.Command{
	Use:   "play <url>",
	Short: "Play a video URL or local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd, args[0])
	},
}

func runPlay(cmd *cobra.Command, rawURL string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	title, _ := cmd.Flags().GetString("title")
	fullscreen, _ := cmd.Flags().GetBool("fullscreen")
	noResume, _ := cmd.Flags().GetBool("no-resume")
	noProbe, _ := cmd.Flags().GetBool("no-probe")
	volume, _ := cmd.Flags().GetFloat64("volume")
	startAt, _ := cmd.Flags().GetFloat64("start")
	headless, _ := cmd.Flags().GetBool("headless")

	if title == "" {
		title = deriveTitle(rawURL)
	}
	if volume < 0 {
		volume = cfg.Player.Volume
	}
	if volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %v", volume)
	}
	if startAt < 0 {
		return fmt.Errorf("start must be a non-negative number of seconds, got %v", startAt)
	}

	logger.Info("vidbridge starting...", "version", version, "url", rawURL)

	// Check the source before spawning a player, so dead links fail
	// with an HTTP status instead of an opaque engine error.
	if cfg.Probe.Enabled && !noProbe {
		prober := source.NewProber(source.ProberConfig{
			Timeout:   time.Duration(cfg.Probe.TimeoutSec) * time.Second,
			Retries:   cfg.Probe.Retries,
			UserAgent: cfg.Probe.UserAgent,
			Logger:    logger,
		})
		if _, err := prober.Probe(ctx, rawURL, nil); err != nil {
			return fmt.Errorf("source check failed: %w", err)
		}
	}

	sessions := session.NewService(database.GetDB(), cfg.Sessions.MinFraction, cfg.Sessions.DoneFraction)
	if cfg.Sessions.RetentionDays > 0 {
		if pruned, err := sessions.Cleanup(cfg.Sessions.RetentionDays); err != nil {
			logger.Warn("session cleanup failed", "error", err)
		} else if pruned > 0 {
			logger.Debug("pruned stale sessions", "count", pruned)
		}
	}

	src := playback.VideoSource{
		URI:        rawURL,
		Title:      title,
		Fullscreen: fullscreen || cfg.Player.Fullscreen,
	}

	// Resume from the saved session unless told otherwise. An explicit
	// --start wins over the saved position.
	if cfg.Sessions.Enabled && !noResume && !cmd.Flags().Changed("start") {
		saved, err := sessions.Resume(rawURL)
		if err != nil {
			logger.Warn("failed to look up saved session", "error", err)
		} else if saved != nil {
			src.StartAt = saved.PositionSeconds
			volume = saved.Volume
			if err := sessions.MarkReplayed(rawURL); err != nil {
				logger.Warn("failed to bump watch count", "error", err)
			}
			if saved.PositionSeconds > 0 {
				logger.Info("resuming playback",
					"position", utils.FormatClock(saved.PositionSeconds),
					"last_played", saved.LastPlayedAt,
				)
			}
		}
	}
	if cmd.Flags().Changed("start") {
		src.StartAt = startAt
	}

	player, err := mpv.NewPlayer(mpv.Options{
		Debug:          cfg.Advanced.Debug,
		LoadUserConfig: cfg.Player.LoadUserConfig,
		ExtraArgs:      cfg.Player.ExtraArgs,
	}, logger)
	if err != nil {
		return err
	}

	bridge := playback.New(player,
		playback.WithLogger(logger),
		playback.WithPollInterval(cfg.Player.PollInterval()),
		playback.WithVolume(volume),
	)

	views := playback.NewRegistry()
	if err := views.Register(bridge); err != nil {
		return err
	}
	defer func() { _ = views.DisposeAll() }()

	if err := bridge.LoadSource(ctx, src); err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}
	if err := bridge.Play(ctx); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	var recorder *session.Recorder
	if cfg.Sessions.Enabled {
		recorder = session.NewRecorder(
			sessions,
			bridge,
			time.Duration(cfg.Sessions.SaveIntervalSecs)*time.Second,
			logger,
		)
		recorder.Start()
		defer recorder.Stop()
	}

	if headless {
		return runHeadless(ctx, bridge)
	}

	var clipOpts []clipboard.Option
	if cfg.Advanced.Clipboard.Command != "" {
		clipOpts = append(clipOpts, clipboard.WithCommand(cfg.Advanced.Clipboard.Command))
	}
	clip := clipboard.NewService(logger, clipOpts...)
	program := tea.NewProgram(
		tui.New(bridge, clip, cfg.Player.SeekStep),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runHeadless drives playback without the TUI, logging state changes
// until the media ends, the process is signalled, or the context is
// cancelled.
func runHeadless(ctx context.Context, bridge *playback.Bridge) error {
	statusCh, cancelStatus := bridge.SubscribeStatus()
	defer cancelStatus()
	endedCh, cancelEnded := bridge.SubscribeEnded()
	defer cancelEnded()
	errCh, cancelErr := bridge.SubscribeError()
	defer cancelErr()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			logger.Info("received signal, stopping playback", "signal", s.String())
			return nil
		case <-endedCh:
			logger.Info("playback finished")
			return nil
		case status := <-statusCh:
			logger.Info("playback status changed", "status", string(status))
		case msg := <-errCh:
			if msg != "" {
				logger.Warn("playback error", "error", msg)
			}
		case <-ticker.C:
			info := bridge.Info()
			logger.Info("playback position",
				"position", utils.FormatClock(info.Position),
				"fraction", fmt.Sprintf("%.0f%%", info.PositionFraction*100),
			)
		}
	}
}

// deriveTitle falls back to the last path segment of the URL.
func deriveTitle(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		if base := filepath.Base(parsed.Path); base != "." && base != "/" {
			return base
		}
	}
	return rawURL
}

// sessionsCmd manages saved playback sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved playback sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		finishedOnly, _ := cmd.Flags().GetBool("finished")

		svc := session.NewService(database.GetDB(), cfg.Sessions.MinFraction, cfg.Sessions.DoneFraction)

		filter := session.FilterOptions{
			SearchQuery: search,
			Limit:       limit,
			SortBy:      session.SortRecentFirst,
		}
		if finishedOnly {
			t := true
			filter.Finished = &t
		}

		items, err := svc.List(filter)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No saved sessions.")
			return nil
		}

		for _, item := range items {
			marker := " "
			if item.Finished {
				marker = "✓"
			}
			fmt.Printf("%s %-40s  %s / %s  (%3.0f%%)  %s\n",
				marker,
				utils.Truncate(item.Title, 40),
				utils.FormatClock(item.PositionSeconds),
				utils.FormatClock(item.DurationSeconds),
				item.Fraction*100,
				humanize.Time(item.LastPlayedAt),
			)
		}
		return nil
	},
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display session statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := session.NewService(database.GetDB(), cfg.Sessions.MinFraction, cfg.Sessions.DoneFraction)

		stats, err := svc.GetStats()
		if err != nil {
			return err
		}

		fmt.Printf("Sessions:   %d\n", stats.TotalSessions)
		fmt.Printf("Finished:   %d\n", stats.FinishedCount)
		fmt.Printf("Watch time: %s\n", stats.TotalWatchTime.Round(time.Second))
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceURI, _ := cmd.Flags().GetString("source")

		svc := session.NewService(database.GetDB(), cfg.Sessions.MinFraction, cfg.Sessions.DoneFraction)

		if sourceURI != "" {
			if err := svc.DeleteBySource(sourceURI); err != nil {
				return err
			}
			fmt.Printf("Deleted session for %s\n", sourceURI)
			return nil
		}

		if err := svc.Clear(); err != nil {
			return err
		}
		fmt.Println("All sessions deleted.")
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsStatsCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)

	sessionsListCmd.Flags().StringP("search", "s", "", "fuzzy match on session titles")
	sessionsListCmd.Flags().IntP("limit", "n", 0, "maximum number of sessions to list (0 = all)")
	sessionsListCmd.Flags().Bool("finished", false, "only list finished sessions")
	sessionsClearCmd.Flags().String("source", "", "delete only the session for this source URL")
}

// configCmd handles configuration operations
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.SaveDefaultConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Default configuration generated successfully at: %s\n", path)
		fmt.Printf("You can now edit this file to customize vidbridge's settings.\n")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Config file:    %s\n", config.ConfigFilePath())
		fmt.Printf("Log level:      %s\n", cfg.Logging.Level)
		fmt.Printf("Log file:       %s\n", cfg.Logging.File)
		fmt.Printf("Database:       %s\n", cfg.Database.Path)
		fmt.Printf("Volume:         %.2f\n", cfg.Player.Volume)
		fmt.Printf("Poll interval:  %s\n", cfg.Player.PollInterval())
		fmt.Printf("Seek step:      %.0fs\n", cfg.Player.SeekStep)
		fmt.Printf("Sessions:       %v\n", cfg.Sessions.Enabled)
		fmt.Printf("Source probing: %v\n", cfg.Probe.Enabled)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
		} else {
			fmt.Println(config.ConfigFilePath())
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vidbridge version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/vidbridge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode (verbose mpv output, debug logging)")

	for _, c := range []*cobra.Command{rootCmd, playCmd} {
		c.Flags().StringP("title", "t", "", "display title (default: derived from the URL)")
		c.Flags().BoolP("fullscreen", "f", false, "start mpv in fullscreen")
		c.Flags().Bool("no-resume", false, "ignore any saved session and start from the beginning")
		c.Flags().Bool("no-probe", false, "skip the source reachability check")
		c.Flags().Float64("volume", -1, "initial volume 0.0-1.0 (default: config value)")
		c.Flags().Float64("start", 0, "start playback at this many seconds, overriding any saved session")
		c.Flags().Bool("headless", false, "run without the TUI, logging playback state instead")
	}

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
