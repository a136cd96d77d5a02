package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockedby/tg-export/internal/collector"
)

var (
	validateLinksFile string
	validateJobFile   string
)

// validateCmd checks links or a job file without contacting Telegram
var validateCmd = &cobra.Command{
	Use:   "validate [links...]",
	Short: "Check channel links or a job file",
	Example: `  tg-export validate @durov t.me/telegram "not a link"
  tg-export validate --links channels.txt
  tg-export validate --job weekly.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if validateJobFile != "" {
			job, err := loadJob(validateJobFile)
			if err != nil {
				return err
			}
			opts, refs, rejected, err := job.Options()
			for _, line := range rejected {
				fmt.Fprintf(out, "❌ %s\n", line)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ %s is valid: %d channel(s), mode %s, limit %d\n",
				validateJobFile, len(refs), opts.Mode, opts.MessageLimit)
			return nil
		}

		lines := append([]string(nil), args...)
		if validateLinksFile != "" {
			more, err := readLines(validateLinksFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			lines = append(lines, more...)
		}

		valid, invalid := collector.ValidateLinks(lines)
		for _, link := range valid {
			fmt.Fprintf(out, "✅ %s\n", link)
		}
		for _, line := range invalid {
			fmt.Fprintf(out, "❌ %s\n", line)
		}
		if len(invalid) > 0 {
			return fmt.Errorf("%d invalid link(s)", len(invalid))
		}
		if len(valid) == 0 {
			return collector.ErrNoChannels
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateLinksFile, "links", "l", "", "file with one link per line (- for stdin)")
	validateCmd.Flags().StringVarP(&validateJobFile, "job", "j", "", "YAML job file")
}
