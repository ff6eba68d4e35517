package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/funnellens/funnellens/internal/domain"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/ingest"
	"github.com/funnellens/funnellens/internal/service/recommendation"
)

// creatorFlag registers --creator and returns a getter that validates it.
func creatorFlag(cmd *cobra.Command) func() (string, error) {
	var id string
	cmd.Flags().StringVar(&id, "creator", "", "creator id (UUID)")
	cmd.MarkFlagRequired("creator")
	return func() (string, error) {
		if _, err := uuid.Parse(id); err != nil {
			return "", fmt.Errorf("creator must be a UUID")
		}
		return id, nil
	}
}

func inRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return nil
}

func baselineCmd(g *globalFlags, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Show the daily fan and revenue baseline ending now",
	}
	creator := creatorFlag(cmd)
	lookback := cmd.Flags().Int("lookback-days", attribution.DefaultBaselineLookbackDays, "days of history (7-30)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := creator()
		if err != nil {
			return err
		}
		if err := inRange("lookback-days", *lookback, 7, 30); err != nil {
			return err
		}
		return withApp(cmd, g, open, func(ctx context.Context, a *app) error {
			b, err := a.engine.Baseline(ctx, id, a.engine.Now(), *lookback)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		})
	}
	return cmd
}

func windowCmd(g *globalFlags, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Attribute new fans and revenue over the last N days",
	}
	creator := creatorFlag(cmd)
	days := cmd.Flags().Int("days", 7, "window length in days (1-90)")
	contentType := cmd.Flags().String("content-type", "", "only count posts of this content type")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := creator()
		if err != nil {
			return err
		}
		if err := inRange("days", *days, 1, 90); err != nil {
			return err
		}
		return withApp(cmd, g, open, func(ctx context.Context, a *app) error {
			end := a.engine.Now()
			start := end.Add(-time.Duration(*days) * 24 * time.Hour)
			res, err := a.engine.AttributeWindow(ctx, id, start, end, *contentType)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	}
	return cmd
}

func performanceCmd(g *globalFlags, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Break the last N days down by content type",
	}
	creator := creatorFlag(cmd)
	days := cmd.Flags().Int("days", attribution.DefaultPerformanceDays, "days to analyze (1-90)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := creator()
		if err != nil {
			return err
		}
		if err := inRange("days", *days, 1, 90); err != nil {
			return err
		}
		return withApp(cmd, g, open, func(ctx context.Context, a *app) error {
			perf, err := a.engine.ContentTypePerformance(ctx, id, *days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), perf)
		})
	}
	return cmd
}

func reportCmd(g *globalFlags, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate content recommendations",
	}
	creator := creatorFlag(cmd)
	days := cmd.Flags().Int("days", attribution.DefaultPerformanceDays, "days to analyze (7-90)")
	text := cmd.Flags().Bool("text", false, "print the plain-text report instead of JSON")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := creator()
		if err != nil {
			return err
		}
		if err := inRange("days", *days, 7, 90); err != nil {
			return err
		}
		return withApp(cmd, g, open, func(ctx context.Context, a *app) error {
			perf, err := a.engine.ContentTypePerformance(ctx, id, *days)
			if err != nil {
				return err
			}
			rep := recommendation.Generate(id, perf, nil)
			if *text {
				_, err := fmt.Fprint(cmd.OutOrStdout(), recommendation.FormatText(rep))
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		})
	}
	return cmd
}

func attributeFansCmd(g *globalFlags, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attribute-fans",
		Short: "Assign a primary content type to unattributed fans",
	}
	creator := creatorFlag(cmd)
	hours := cmd.Flags().Int("window-hours", attribution.DefaultFanWindowHours, "look-back window before acquisition (12-168)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := creator()
		if err != nil {
			return err
		}
		if err := inRange("window-hours", *hours, 12, 168); err != nil {
			return err
		}
		return withApp(cmd, g, open, func(ctx context.Context, a *app) error {
			stats, err := a.engine.AttributeFans(ctx, id, *hours)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		})
	}
	return cmd
}

func importCmd(g *globalFlags, open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <social_posts|fans|revenue> <file.csv>",
		Short: "Import a CSV export",
		Args:  cobra.ExactArgs(2),
	}
	creator := creatorFlag(cmd)
	snapshot := cmd.Flags().String("snapshot-at", "", "instant a social_posts file describes (RFC 3339, default now)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := creator()
		if err != nil {
			return err
		}
		var snapshotAt time.Time
		if *snapshot != "" {
			snapshotAt, err = time.Parse(time.RFC3339, *snapshot)
			if err != nil {
				return fmt.Errorf("snapshot-at must be RFC 3339")
			}
		}
		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		return withApp(cmd, g, open, func(ctx context.Context, a *app) error {
			imp, err := a.importer.Import(ctx, ingest.Request{
				CreatorID:  id,
				Type:       domain.ImportType(args[0]),
				FileName:   filepath.Base(args[1]),
				Content:    content,
				SnapshotAt: snapshotAt,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), imp)
		})
	}
	return cmd
}
