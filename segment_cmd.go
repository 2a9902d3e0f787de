package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrate/tts/sentence"
	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

var segmentCmd = &cobra.Command{
	Use:     "segment [SOURCE|DIR]",
	Short:   "Show how text is split into sentences",
	Long:    paragraph(fmt.Sprintf("\nPrint each sentence with its %s in the text and, when it differs, the form sent to the speech engine.", keyword("byte range"))),
	Example: paragraph("narrate segment notes.txt\necho 'Dr. Lee arrived. Great!' | narrate segment"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		src, err := resolveSource(args)
		if err != nil {
			return err
		}
		defer src.reader.Close() //nolint:errcheck

		text, err := readText(src.reader, cfg.Markdown || isMarkdownFile(src.Path))
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return errNothingToRead
		}

		return writeSegments(cmd.OutOrStdout(), text, newSegmenter(cfg), sentence.NewExpander(nil))
	},
}

func init() {
	segmentCmd.Flags().BoolVar(&markdownInput, "markdown", false, "treat input as markdown and read only its prose")
	segmentCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read the text from the clipboard")
}

// writeSegments prints the sentences of text the way the controller sees
// them: located range, displayed text and spoken form.
func writeSegments(w io.Writer, text string, seg *sentence.Segmenter, exp *sentence.Expander) error {
	sentences := seg.Segment(text)
	tracker := ttssync.NewTracker(text)
	width := len(fmt.Sprint(len(sentences)))

	for i, s := range sentences {
		r := tracker.Next(s)
		if _, err := fmt.Fprintf(w, "%s %s %s\n",
			titleColor.Sprintf("%*d", width, i+1),
			faintColor.Sprintf("[%d:%d]", r.Start, r.End()),
			s,
		); err != nil {
			return err
		}

		if spoken := exp.Expand(s); spoken != s {
			if _, err := fmt.Fprintf(w, "%*s %s %s\n", width, "", infoColor.Sprint("→"), spoken); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w, faintColor.Sprintf("%d sentences", len(sentences)))
	return err
}
