package main

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/aurora-log-sync/internal/config"
	"github.com/chmdznr/aurora-log-sync/internal/db"
	"github.com/chmdznr/aurora-log-sync/internal/rds"
	"github.com/chmdznr/aurora-log-sync/internal/storage"
	"github.com/chmdznr/aurora-log-sync/internal/sync"
	"github.com/chmdznr/aurora-log-sync/pkg/utils"
	"github.com/chmdznr/aurora-log-sync/pkg/version"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	app := &cli.App{
		Name:                 "alsync",
		Usage:                "Ship Aurora/RDS log files to S3-compatible object storage",
		Version:              version.Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("Version:    %s\n", version.Version)
					fmt.Printf("Git commit: %s\n", version.GitCommit)
					fmt.Printf("Built:      %s\n", version.BuildTime)
					return nil
				},
			},
			{
				Name:  "sync",
				Usage: "Run one batch sync covering all configured instances",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to config.ini",
						Value:   "config.ini",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Render per-instance progress bars",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging",
					},
				},
				Action: runSync,
			},
			{
				Name:  "status",
				Usage: "Show per-instance run history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to config.ini",
						Value:   "config.ini",
					},
					&cli.IntFlag{
						Name:  "recent",
						Usage: "Also list the N most recent runs",
						Value: 0,
					},
				},
				Action: showStatus,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runSync(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	source, err := rds.New(cfg.AWS.Region)
	if err != nil {
		return fmt.Errorf("failed to create RDS client: %w", err)
	}

	store, err := storage.NewMinioStore(storage.Options{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return err
	}

	history, err := db.New(cfg.Sync.HistoryDB)
	if err != nil {
		// History is an operator convenience; a broken local DB must not
		// stop log shipping.
		log.WithError(err).Warn("Run history disabled")
		history = nil
	} else {
		defer history.Close()
	}

	records := sync.NewRecordStore(store, cfg.Storage.RecordPrefix, cfg.Sync.RecordDir)
	syncer := sync.NewSyncer(source, store, records, history, clockwork.NewRealClock(), sync.SyncerConfig{
		Prefix:       cfg.Storage.Prefix,
		StagingDir:   cfg.Sync.StagingDir,
		CutoffDays:   cfg.Sync.CutoffDays,
		ShowProgress: c.Bool("progress"),
	})

	log.Infof("Starting sync of %d instances", len(cfg.Instances))
	results := syncer.SyncAll(cfg.Instances)

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-30s FAILED   %v\n", r.Instance, r.Err)
		} else {
			fmt.Printf("%-30s ok       %d files uploaded\n", r.Instance, r.Uploaded)
		}
	}

	if failed := sync.Failed(results); failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d instances failed", failed, len(results)), 1)
	}
	return nil
}

func showStatus(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	history, err := db.New(cfg.Sync.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer history.Close()

	stats, err := history.GetStats()
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	for _, s := range stats {
		fmt.Printf("Instance: %s\n", s.Instance)
		fmt.Printf("  Runs: %d (%d failed)\n", s.TotalRuns, s.FailedRuns)
		fmt.Printf("  Files uploaded: %d\n", s.FilesSent)
		fmt.Printf("  Last run: %s\n", s.LastRunAt.Format("2006-01-02 15:04:05 MST"))
		if s.LastError != "" {
			fmt.Printf("  Last error: %s\n", s.LastError)
		}
	}

	if n := c.Int("recent"); n > 0 {
		recent, err := history.RecentRuns(n)
		if err != nil {
			return err
		}
		fmt.Println("\nRecent runs:")
		for _, r := range recent {
			status := "ok"
			if r.Error != "" {
				status = "failed: " + r.Error
			}
			fmt.Printf("  %s  %-30s %3d files  %-8s %s\n",
				r.StartedAt.Format("2006-01-02 15:04"),
				r.Instance,
				r.FilesSent,
				utils.FormatDuration(r.Duration),
				status)
		}
	}
	return nil
}
