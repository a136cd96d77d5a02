package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockedby/tg-export/internal/collector"
	"github.com/blockedby/tg-export/internal/logger"
	"github.com/blockedby/tg-export/internal/telegram"
)

type scrapeFlags struct {
	mode      string
	limit     int
	fromDate  string
	wordLimit int
	linksFile string
	jobFile   string
	format    string
	outDir    string

	modeSet      bool
	limitSet     bool
	fromDateSet  bool
	wordLimitSet bool
}

var scrapeOpts scrapeFlags

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [links...]",
	Short: "Scrape channels and save a report",
	Example: `  # last 1000 messages of two channels as JSON
  tg-export scrape @durov https://t.me/telegram

  # everything since March 1st, as Excel
  tg-export scrape durov --mode by_date --from-date 2024-03-01 --format xlsx

  # channels listed one per line, about 50k words each
  tg-export scrape --links channels.txt --mode by_words --word-limit 50000

  # a saved job, written to stdout
  tg-export scrape --job weekly.yaml --out -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		scrapeOpts.modeSet = f.Changed("mode")
		scrapeOpts.limitSet = f.Changed("limit")
		scrapeOpts.fromDateSet = f.Changed("from-date")
		scrapeOpts.wordLimitSet = f.Changed("word-limit")
		return runScrape(cmd, args, scrapeOpts)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&scrapeOpts.mode, "mode", "m", string(collector.ByCount), "stop mode (by_count, by_date, from_start, by_words)")
	scrapeCmd.Flags().IntVarP(&scrapeOpts.limit, "limit", "n", 0, "max messages per channel (0 = mode default)")
	scrapeCmd.Flags().StringVar(&scrapeOpts.fromDate, "from-date", "", "oldest day to keep, YYYY-MM-DD (by_date)")
	scrapeCmd.Flags().IntVar(&scrapeOpts.wordLimit, "word-limit", collector.DefaultWordLimit, "word budget per channel (by_words)")
	scrapeCmd.Flags().StringVarP(&scrapeOpts.linksFile, "links", "l", "", "file with one link per line (- for stdin)")
	scrapeCmd.Flags().StringVarP(&scrapeOpts.jobFile, "job", "j", "", "YAML job file")
	scrapeCmd.Flags().StringVarP(&scrapeOpts.format, "format", "f", string(collector.FormatJSON), "output format (json, csv, xlsx)")
	scrapeCmd.Flags().StringVarP(&scrapeOpts.outDir, "out", "o", "", "output directory (default OUTPUT_DIR, - for stdout)")
}

func runScrape(cmd *cobra.Command, args []string, flags scrapeFlags) error {
	log := logger.Get()

	format, err := collector.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	var job *collector.ScrapeRequest
	if flags.jobFile != "" {
		if job, err = loadJob(flags.jobFile); err != nil {
			return err
		}
	}

	links := append([]string(nil), args...)
	if flags.linksFile != "" {
		lines, err := readLines(flags.linksFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		links = append(links, lines...)
	}

	req := buildRequest(job, links, flags)
	opts, refs, rejected, err := req.Options()
	for _, line := range rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  skipping invalid link: %s\n", line)
	}
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionDB, err := telegram.OpenSessionDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := telegram.CloseSessionDB(sessionDB); err != nil {
			log.Warn().Err(err).Msg("failed to close session database")
		}
	}()
	client, err := telegram.NewManager(cfg, sessionDB).Connect(ctx)
	if err != nil {
		return err
	}

	svc := collector.NewService(log, collector.RetryPolicy{MaxAttempts: cfg.TGFloodRetries})
	progress := func(f float64) {
		log.Debug().Float64("progress", f).Msg("scrape progress")
	}

	report, err := svc.Run(ctx, client, refs, opts, progress, log.Sink("scrape"))
	if err != nil {
		return err
	}

	outDir := flags.outDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if outDir == "-" {
		return collector.WriteReport(cmd.OutOrStdout(), format, report)
	}

	path, err := collector.SaveReport(outDir, format, report)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "💾 Saved %d messages from %d channel(s) to %s\n",
		report.TotalMessages, report.TotalChannels, path)
	return nil
}
