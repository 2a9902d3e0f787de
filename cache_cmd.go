package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts/engines"
)

var clearCache bool

var cacheCmd = &cobra.Command{
	Use:     "cache",
	Short:   "Show or clear the synthesized audio cache",
	Long:    paragraph(fmt.Sprintf("\nShow how much synthesized speech is %s, or clear it.", keyword("cached"))),
	Example: paragraph("narrate cache\nnarrate cache --clear"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if !cfg.Cache.Enabled {
			_, err := fmt.Fprintln(w, warningColor.Sprint("The audio cache is disabled."))
			return err
		}

		store, err := engines.OpenCache(cfg.Cache, log.Default())
		if err != nil {
			return fmt.Errorf("unable to open audio cache: %w", err)
		}
		defer store.Close() //nolint:errcheck

		if clearCache {
			if err := store.Clear(); err != nil {
				return fmt.Errorf("unable to clear audio cache: %w", err)
			}
			fmt.Fprintln(w, successColor.Sprint("Cleared the audio cache."))
		}
		return writeCacheStats(w, store.Dir(), store.Stats())
	},
}

func init() {
	cacheCmd.Flags().BoolVar(&clearCache, "clear", false, "remove all cached audio")
}

func writeCacheStats(w io.Writer, dir string, stats map[cache.Level]cache.Stats) error {
	if dir != "" {
		fmt.Fprintf(w, "%s %s\n", titleColor.Sprint("Directory:"), dir)
	}

	for _, level := range []cache.Level{cache.LevelMemory, cache.LevelDisk} {
		s, ok := stats[level]
		if !ok {
			continue
		}

		line := fmt.Sprintf("%-7s %d entries, %s of %s",
			level.String()+":",
			s.ItemCount,
			humanize.IBytes(uint64(max(0, s.Size))),     //nolint:gosec
			humanize.IBytes(uint64(max(0, s.Capacity))), //nolint:gosec
		)
		if s.Hits+s.Misses > 0 {
			line += fmt.Sprintf(", %.0f%% hit rate", s.HitRate()*100)
		}
		if !s.LastAccess.IsZero() {
			line += ", last used " + humanize.Time(s.LastAccess)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
