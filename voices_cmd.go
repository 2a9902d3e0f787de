package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/audio"
	"github.com/dgnsrekt/narrate/tts/engines"
)

const listVoicesTimeout = 30 * time.Second

var voicesFilter string

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the speech engine",
	Long:    paragraph(fmt.Sprintf("\nList the voices offered by the selected engine. Pass an %s or name to --voice to use one.", keyword("ID"))),
	Example: paragraph("narrate voices\nnarrate voices --engine system --filter english"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Listing voices never plays audio, so the device stays closed.
		player := audio.NewMockPlayer(audio.Format{SampleRate: cfg.SampleRate, Channels: 1})
		sel, err := engines.New(cmd.Context(), cfg, engines.Options{Player: player, Logger: log.Default()})
		if err != nil {
			return fmt.Errorf("no speech engine available: %w", err)
		}
		defer sel.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(cmd.Context(), listVoicesTimeout)
		defer cancel()

		voices, err := sel.Voices(ctx)
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}

		voices = filterVoices(voices, voicesFilter)
		return writeVoices(cmd.OutOrStdout(), sel.Name, voices)
	},
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesFilter, "filter", "f", "", "fuzzy filter on voice ID, name and language")
}

// voiceSource adapts voices to fuzzy.Source.
type voiceSource []tts.Voice

func (s voiceSource) String(i int) string { return s[i].FilterValue() }
func (s voiceSource) Len() int            { return len(s) }

// filterVoices returns the voices matching pattern, best match first.
func filterVoices(voices []tts.Voice, pattern string) []tts.Voice {
	if pattern == "" {
		return voices
	}

	matches := fuzzy.FindFrom(pattern, voiceSource(voices))
	out := make([]tts.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

func writeVoices(w io.Writer, engine string, voices []tts.Voice) error {
	if len(voices) == 0 {
		_, err := fmt.Fprintln(w, warningColor.Sprintf("No %s voices found.", engine))
		return err
	}

	rows := make([][]string, 0, len(voices))
	for _, v := range voices {
		rows = append(rows, []string{v.ID, v.Name, v.Language, v.Gender})
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "LANGUAGE", "GENDER").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintf(w, "%s\n%s\n", titleColor.Sprintf("%d %s voices", len(voices), engine), t.Render())
	return err
}
