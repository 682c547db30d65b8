package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/NLStats/internal/collect"
	"github.com/TobiSchelling/NLStats/internal/config"
	"github.com/TobiSchelling/NLStats/internal/database"
	"github.com/TobiSchelling/NLStats/internal/localcache"
	"github.com/TobiSchelling/NLStats/internal/pipeline"
	"github.com/TobiSchelling/NLStats/internal/report"
	"github.com/TobiSchelling/NLStats/internal/server"
	"github.com/TobiSchelling/NLStats/internal/titleparse"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "nlstats",
	Short:        "Channel video statistics",
	Long:         "nlstats pulls video metadata and engagement counts for a YouTube channel, infers the game of every video and keeps a history of collection events for reporting.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pullLocalCmd)
	rootCmd.AddCommand(processLocalCmd)
	rootCmd.AddCommand(repullCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(peekCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nlstats", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/nlstats/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the channel, and export the API key (or put it in .env).")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Collection events:")
		fmt.Printf("  Total: %d\n", stats.Events)
		fmt.Printf("  Complete: %d\n", stats.CompleteEvents)
		if stats.LatestComplete != nil {
			fmt.Printf("  Latest complete pull: %s\n", stats.LatestComplete.Local().Format(time.DateTime))
		}
		if stats.EarliestComplete != nil {
			fmt.Printf("  Earliest complete pull: %s\n", stats.EarliestComplete.Local().Format(time.DateTime))
		}
		fmt.Println("\nData:")
		fmt.Printf("  Videos: %d\n", stats.Videos)
		fmt.Printf("  Raw items: %d\n", stats.RawItems)
		fmt.Printf("  Processed stats: %d\n", stats.ProcessedStats)
		fmt.Println("\nConversion rules:")
		fmt.Printf("  By parsed title: %d\n", stats.ConversionRules)
		fmt.Printf("  By video: %d\n", stats.VideoConversionRules)

		events, err := db.ListCollectionEvents(5)
		if err != nil {
			return fmt.Errorf("listing collection events: %w", err)
		}
		if len(events) > 0 {
			fmt.Println("\nRecent collection events:")
			for _, e := range events {
				fmt.Printf("  %4d  %s  %-13s  %s\n", e.ID, e.PullDatetime.Local().Format(time.DateTime), e.Stage, e.RunID)
			}
		}
		return nil
	},
}

// --- pull commands ---

var (
	dryRun      bool
	writeCache  bool
	peekLimit   int
	reportLocal bool
	reportTopN  int
	servePort   int
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull every video of the channel into a new collection event",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		client := newClient()
		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		if writeCache {
			opts.Cache = openCache()
		}
		pipe := pipeline.New(db, opts)

		if dryRun {
			printSteps(pipe.DryRun(client))
			return nil
		}
		if !client.IsConfigured() {
			return fmt.Errorf("source is not configured: set source.upload_playlist_id and $%s", cfg.Source.APIKeyEnv)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := pipe.Run(ctx, client)
		printSteps(result)
		if err != nil {
			return err
		}
		fmt.Printf("\nCollection event %d complete. Run 'nlstats serve' to view the stats.\n", result.EventID)
		return nil
	},
}

var pullLocalCmd = &cobra.Command{
	Use:     "pull-local",
	Aliases: []string{"pull_local"},
	Short:   "Pull every video of the channel into raw and processed cache files only",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if !client.IsConfigured() {
			return fmt.Errorf("source is not configured: set source.upload_playlist_id and $%s", cfg.Source.APIKeyEnv)
		}

		pipe, closeDB, err := localPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := pipe.PullLocal(ctx, client)
		if err != nil {
			return err
		}
		printLocal(res)
		return nil
	},
}

var processLocalCmd = &cobra.Command{
	Use:     "process-local",
	Aliases: []string{"process_local"},
	Short:   "Normalize the newest raw cache file into a processed cache file",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, closeDB, err := localPipeline()
		if err != nil {
			return err
		}
		defer closeDB()

		res, err := pipe.ProcessLocal(cmd.Context())
		if err != nil {
			return err
		}
		printLocal(res)
		return nil
	},
}

// localPipeline builds a pipeline that writes to the local cache. The
// database only supplies conversion rules.
func localPipeline() (*pipeline.Pipeline, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	opts.Cache = openCache()
	return pipeline.New(db, opts), func() { db.Close() }, nil
}

func printLocal(res *pipeline.LocalResult) {
	fmt.Printf("Raw:       %s (%d items)\n", res.RawPath, res.Items)
	fmt.Printf("Processed: %s (%d rows)\n", res.ProcessedPath, len(res.Process.Rows))
	fmt.Printf("  %s\n", res.Process.Normalize)
	fmt.Printf("  Sponsored dropped: %d\n", res.Process.Convert.SponsoredDropped)
}

var repullCmd = &cobra.Command{
	Use:   "repull",
	Short: "Ingest the newest raw cache file into a new collection event",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}

		result, err := pipeline.New(db, opts).Run(cmd.Context(), pipeline.CacheSource{Cache: openCache()})
		printSteps(result)
		return err
	},
}

func init() {
	pullCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	pullCmd.Flags().BoolVar(&writeCache, "cache", false, "Also write raw and processed snapshots to the local cache")
}

// --- convert and rules commands ---

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Apply the conversion rules to the games of stored videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rep, err := pipeline.ConvertStored(db)
		if err != nil {
			return err
		}
		total := 0
		for _, n := range rep.Rewritten {
			total += n
		}
		fmt.Printf("Rewrote %d videos with %d rules (%d rules matched nothing)\n",
			total, len(rep.Rewritten), len(rep.NoMatch))
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage game conversion rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversion rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rules, err := db.ListConversionRules()
		if err != nil {
			return err
		}
		videoRules, err := db.ListVideoConversionRules()
		if err != nil {
			return err
		}

		if len(rules) == 0 && len(videoRules) == 0 {
			fmt.Println("No conversion rules defined. Add one with: nlstats rules add")
			return nil
		}

		if len(rules) > 0 {
			fmt.Println("By parsed title:")
			for _, r := range rules {
				fmt.Printf("  [%d] %q -> %q\n", r.ID, r.ParsedTitle, r.FinalTitle)
			}
		}
		if len(videoRules) > 0 {
			fmt.Println("By video:")
			for _, r := range videoRules {
				fmt.Printf("  [%d] %s -> %q\n", r.ID, r.VideoID, r.FinalTitle)
			}
		}
		return nil
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add [parsed title] [final title]",
	Short: "Rewrite a parsed game label to its canonical name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rule, err := db.AddConversionRule(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added rule [%d]: %q -> %q\n", rule.ID, rule.ParsedTitle, rule.FinalTitle)
		return nil
	},
}

var rulesAddVideoCmd = &cobra.Command{
	Use:   "add-video [video id] [final title]",
	Short: "Pin the game of a single video",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rule, err := db.AddVideoConversionRule(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added video rule [%d]: %s -> %q\n", rule.ID, rule.VideoID, rule.FinalTitle)
		return nil
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a conversion rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return removeRule(args[0], func(db *database.DB, id int64) error { return db.RemoveConversionRule(id) })
	},
}

var rulesRemoveVideoCmd = &cobra.Command{
	Use:   "remove-video [id]",
	Short: "Remove a video conversion rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return removeRule(args[0], func(db *database.DB, id int64) error { return db.RemoveVideoConversionRule(id) })
	},
}

func removeRule(arg string, remove func(*database.DB, int64) error) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rule ID: %s", arg)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := remove(db, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("rule %d not found", id)
		}
		return err
	}
	fmt.Printf("Removed rule [%d]\n", id)
	return nil
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rulesCmd.AddCommand(rulesAddVideoCmd)
	rulesCmd.AddCommand(rulesRemoveVideoCmd)
}

// --- peek, report and serve commands ---

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Preview recent uploads from the public channel feed and their parsed game",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Source.ChannelID == "" {
			return fmt.Errorf("source.channel_id is not set")
		}

		entries, err := collect.NewFeedReader(collect.ChannelFeedURL(cfg.Source.ChannelID)).Recent(cmd.Context(), peekLimit)
		if err != nil {
			return err
		}

		parser := titleparse.Default()
		for _, e := range entries {
			fmt.Printf("%s  %s\n", e.Published.Format(time.DateOnly), e.Title)
			if game, rule, ok := parser.Explain(e.Title); ok {
				fmt.Printf("            game: %s (%s)\n", game, rule)
			} else {
				fmt.Println("            game: -")
			}
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the current stats as markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap *report.Snapshot
		if reportLocal {
			rows, path, err := openCache().ReadLatestProcessed()
			if err != nil {
				return err
			}
			log.Printf("Reporting from %s", path)
			snap = report.Build(report.FromRows(rows))
		} else {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err = report.NewCache(db).Snapshot()
			if errors.Is(err, report.ErrNoData) {
				return fmt.Errorf("no complete collection event yet; run 'nlstats pull' first")
			}
			if err != nil {
				return err
			}
		}

		fmt.Print(report.Markdown(snap, reportTopN))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	peekCmd.Flags().IntVarP(&peekLimit, "limit", "n", 15, "Number of uploads to show (0 for all)")
	reportCmd.Flags().BoolVar(&reportLocal, "local", false, "Report from the newest processed cache file instead of the database")
	reportCmd.Flags().IntVarP(&reportTopN, "top", "n", 10, "Rows per table")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8050, "Port to run server on (default from config)")
}

func printSteps(result *pipeline.Result) {
	if result == nil {
		return
	}
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func newClient() *collect.YouTubeClient {
	// Already validated when the config was loaded.
	delay, _ := cfg.Source.Delay()
	return collect.NewYouTubeClient(collect.ClientConfig{
		BaseURL:    cfg.Source.BaseURL,
		PlaylistID: cfg.Source.UploadPlaylistID,
		APIKey:     cfg.Source.APIKey(),
		PageSize:   cfg.Source.PageSize,
		BatchSize:  cfg.Source.BatchSize,
		Delay:      delay,
	})
}

func openCache() *localcache.Cache {
	return localcache.New(filepath.Join(cfg.GetDataDir(), "local_data"))
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "nlstats.db")
	return database.Open(dbPath)
}
