package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/writeuphq/writeupd/internal/config"
	"github.com/writeuphq/writeupd/internal/scheduler"
	"github.com/writeuphq/writeupd/internal/store"
	"github.com/writeuphq/writeupd/pkg/alert"
	"github.com/writeuphq/writeupd/pkg/feed"
	"github.com/writeuphq/writeupd/pkg/ingest"
	"github.com/writeuphq/writeupd/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildFeeds(cfg *config.Config) []feed.Feed {
	var feeds []feed.Feed
	for _, fc := range cfg.Feeds {
		switch fc.Kind {
		case "rss":
			feeds = append(feeds, feed.NewRSS(fc.Name, fc.URL))
		default:
			feeds = append(feeds, feed.NewJSON(fc.Name, fc.URL, fc.Source))
		}
	}
	return feeds
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runIngest(filterFeeds []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	allFeeds := buildFeeds(cfg)

	// Filter to requested feeds only.
	var feeds []feed.Feed
	if len(filterFeeds) > 0 {
		wanted := make(map[string]bool)
		for _, name := range filterFeeds {
			wanted[strings.ToLower(strings.TrimSpace(name))] = true
		}
		for _, f := range allFeeds {
			if wanted[strings.ToLower(f.Name())] {
				feeds = append(feeds, f)
			}
		}
		if len(feeds) == 0 {
			return fmt.Errorf("no matching feeds for: %s", strings.Join(filterFeeds, ", "))
		}
	} else {
		feeds = allFeeds
	}

	engine := ingest.New(db)
	ctx := context.Background()
	total := 0

	for _, f := range feeds {
		fmt.Fprintf(os.Stderr, "ingesting %s...\n", f.Name())
		created, err := engine.IngestFeed(ctx, f)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "  %d new writeups\n", len(created))
		total += len(created)
	}

	if total == 0 {
		fmt.Fprintln(os.Stderr, "\nno new items")
		return nil
	}
	fmt.Fprintf(os.Stderr, "\ntotal: %d new writeups from %d feeds\n", total, len(feeds))
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv := server.New(db, ingest.New(db), buildFeeds(cfg), buildAlertManager(cfg), port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := ingest.New(db)
	feeds := buildFeeds(cfg)
	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(engine, feeds, alertMgr, cfg.Schedule.ParseIngestInterval())

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	// Start HTTP server.
	srv := server.New(db, engine, feeds, alertMgr, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}

func runStats(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	counts, err := db.CountWriteupsBySource(context.Background())
	if err != nil {
		return fmt.Errorf("count writeups: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	if len(counts) == 0 {
		fmt.Println("no writeups stored (try ingesting first: writeupd ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tWRITEUPS")
	for source, count := range counts {
		fmt.Fprintf(w, "%s\t%d\n", source, count)
	}
	return w.Flush()
}

func runPurge(yes bool) error {
	if !yes {
		return fmt.Errorf("purge deletes everything; re-run with --yes to confirm")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.PurgeAll(context.Background()); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	fmt.Fprintln(os.Stderr, "purged all writeups, tags and annotations")
	return nil
}
