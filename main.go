// Package main provides the entry point for the narrate CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines"
	"github.com/dgnsrekt/narrate/tts/sentence"
	"github.com/dgnsrekt/narrate/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile     string
	engineName     string
	fallbackName   string
	voiceName      string
	rate           float64
	volume         float64
	logLevel       string
	markdownInput  bool
	fromClipboard  bool
	plain          bool
	highlightColor string
	mouse          bool

	rootCmd = &cobra.Command{
		Use:   "narrate [SOURCE|DIR]",
		Short: "Read text aloud, one highlighted sentence at a time",
		Long: paragraph(
			fmt.Sprintf("\nRead text aloud %s, following along with a highlight.", keyword("sentence by sentence")),
		),
		Example: paragraph("narrate notes.txt\nnarrate --markdown README.md\ncat essay.txt | narrate --engine piper\nnarrate --clipboard --plain"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("config") {
				configFile = expandPath(configFile)
				viper.SetConfigFile(configFile)
				err := viper.ReadInConfig()
				if err != nil && cmd.Name() == "config" && errors.Is(err, fs.ErrNotExist) {
					err = nil // created by the config command
				}
				if err != nil {
					return fmt.Errorf("unable to read config file: %w", err)
				}
			}
			return setLogLevel(viper.GetString("log_level"))
		},
		RunE: execute,
	}
)

// loadConfig builds the narration configuration: defaults, the config file,
// NARRATE_* environment variables, then flags given on the command line.
func loadConfig(cmd *cobra.Command) (tts.Config, error) {
	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = engineName
	}
	if flags.Changed("fallback") {
		cfg.Fallback = fallbackName
	}
	if flags.Changed("voice") {
		cfg.Voice = voiceName
	}
	if flags.Changed("rate") {
		cfg.Rate = rate
	}
	if flags.Changed("volume") {
		cfg.Volume = volume
	}
	if flags.Changed("markdown") {
		cfg.Markdown = markdownInput
	}
	if flags.Changed("highlight-color") {
		cfg.HighlightColor = highlightColor
	}

	cfg.Cache.Dir = expandPath(cfg.Cache.Dir)
	cfg.Piper.Model = expandPath(cfg.Piper.Model)
	cfg.Piper.ModelDir = expandPath(cfg.Piper.ModelDir)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid narration configuration: %w", err)
	}
	return cfg, nil
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src, err := resolveSource(args)
	if err != nil {
		return err
	}
	defer src.reader.Close() //nolint:errcheck

	isMarkdown := cfg.Markdown || isMarkdownFile(src.Path)
	text, err := readText(src.reader, isMarkdown)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errNothingToRead
	}

	return narrate(cmd.Context(), cfg, src, text, isMarkdown)
}

// resolveSource picks the input: the clipboard, piped stdin, or the
// argument (a file, "-" or a directory).
func resolveSource(args []string) (*source, error) {
	if fromClipboard {
		if len(args) > 0 {
			return nil, errors.New("cannot read from both the clipboard and an argument")
		}
		return sourceFromClipboard()
	}

	// if stdin is a pipe then use stdin for input. note that you can also
	// explicitly use a - to read from stdin.
	if len(args) == 0 {
		if yes, err := stdinIsPipe(); err != nil {
			return nil, err
		} else if yes {
			return sourceFromArg("-")
		}
		return sourceFromArg("")
	}
	return sourceFromArg(args[0])
}

func narrate(ctx context.Context, cfg tts.Config, src *source, text string, isMarkdown bool) error {
	store, err := engines.OpenCache(cfg.Cache, log.Default())
	if err != nil {
		log.Warn("audio cache disabled", "err", err)
		store = nil
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("unable to save audio cache", "err", err)
			}
		}()
	}

	sel, err := engines.New(ctx, cfg, engines.Options{Cache: store, Logger: log.Default()})
	if err != nil {
		return fmt.Errorf("no speech engine available: %w", err)
	}
	defer sel.Close() //nolint:errcheck
	log.Info("narrating", "source", src.Title, "engine", sel.Name, "fallback", sel.Fallback, "bytes", len(text))

	opts := []tts.ControllerOption{
		tts.WithSegmenter(newSegmenter(cfg)),
		tts.WithControllerConfig(cfg.ToControllerConfig()),
		tts.WithControllerLogger(log.Default()),
	}

	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		printer := newConsolePrinter(os.Stdout, text)
		ctrl := tts.NewController(sel, append(opts, tts.WithHighlightSink(printer), tts.WithStatusSink(printer))...)
		return runConsole(ctrl, printer, text)
	}

	sink := ui.NewSink()
	ctrl := tts.NewController(sel, append(opts, tts.WithHighlightSink(sink), tts.WithStatusSink(sink))...)
	defer ctrl.Close() //nolint:errcheck

	uiCfg := ui.Config{
		Title:          src.Title,
		Text:           text,
		Path:           src.Path,
		Controller:     ctrl,
		Sink:           sink,
		HighlightColor: cfg.HighlightColor,
		Engine:         sel.Name,
		EnableMouse:    mouse,
	}
	if src.Path != "" {
		path := src.Path
		uiCfg.Load = func() (string, error) { return loadFile(path, isMarkdown) }
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(uiCfg).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func newSegmenter(cfg tts.Config) *sentence.Segmenter {
	return sentence.NewSegmenter(sentence.DefaultAbbreviations(),
		sentence.WithTitleThreshold(cfg.TitleThreshold),
		sentence.WithLogger(log.Default()),
	)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	tryLoadConfigFromDefaultPlaces()
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	// Flags shared by every command
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default narrate.yml in the user config directory)")
	pf.StringVarP(&engineName, "engine", "e", tts.EngineAuto, fmt.Sprintf("speech engine (%s)", strings.Join(tts.Engines, ", ")))
	pf.StringVar(&fallbackName, "fallback", tts.EngineMock, "engine used after repeated failures (empty disables)")
	pf.StringVar(&voiceName, "voice", "", "voice name or ID")
	pf.Float64VarP(&rate, "rate", "r", 1.0, "speaking rate multiplier (0.25-4.0)")
	pf.Float64Var(&volume, "volume", 1.0, "playback volume (0.0-1.0)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().BoolVar(&markdownInput, "markdown", false, "treat input as markdown and read only its prose")
	rootCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read the text from the clipboard")
	rootCmd.Flags().BoolVarP(&plain, "plain", "p", false, "print sentences instead of opening the reader")
	rootCmd.Flags().StringVar(&highlightColor, "highlight-color", "yellow", "colour of the sentence being spoken")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (reader only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("log_level", "info")
	viper.SetDefault("mouse", false)
	tts.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd, segmentCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "narrate")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "narrate")}, dirs...)
	}

	if c := os.Getenv("NARRATE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("narrate")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("narrate")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "narrate.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
