package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# log level: debug, info, warn or error
log_level: "info"
# mouse support (reader only)
mouse: false

tts:
  # engine: auto, piper, system, google or mock
  engine: "auto"
  # engine used after max_failures failed sentences in a row (empty disables)
  fallback: "mock"
  max_failures: 3
  # voice name or ID; see "narrate voices"
  # voice: "en_US-lessac-medium"

  # speaking rate multiplier (0.25 to 4.0)
  rate: 1.0
  # playback volume (0.0 to 1.0)
  volume: 1.0
  sample_rate: 22050

  # silence between sentences
  sentence_gap: "150ms"
  # how often a paused narration checks its state
  poll_interval: "25ms"

  # read markdown files as prose
  markdown: false
  # paragraphs shorter than this without final punctuation are read as titles
  title_threshold: 100
  # black, red, green, yellow, blue, magenta, cyan or white
  highlight_color: "yellow"

  piper:
    binary: "piper"
    # model name or path to an .onnx voice
    model: "en_US-lessac-medium"
    # model_dir: "~/.local/share/piper-voices"
    speaker_id: 0
    length_scale: 1.0
    sample_rate: 22050
    timeout: "30s"

  system:
    # binary: "espeak-ng"
    wpm: 175
    timeout: "1m"

  google:
    # credentials_file: "~/.config/gcloud/narrate.json"
    language_code: "en-US"
    voice_name: "en-US-Standard-C"
    speaking_rate: 1.0
    pitch: 0.0
    volume_gain: 0.0
    requests_per_minute: 100
    timeout: "10s"

  mock:
    delay: "0s"
    words_per_minute: 180
    failure_rate: 0.0

  cache:
    enabled: true
    # dir: "~/.cache/narrate/audio"
    memory_mb: 64
    disk_mb: 512
    # zstd level (1-22), 0 disables compression
    compression_level: 3
`

var printConfig bool

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the narrate config file",
	Long:    paragraph(fmt.Sprintf("\n%s the narrate config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("narrate config\nnarrate config --config path/to/config.yml\nnarrate config --print --engine piper"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if printConfig {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg)
		}

		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Narrate", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&printConfig, "print", false, "print the effective configuration instead of editing it")
}

// writeConfig writes cfg as YAML under a "tts" key, in the layout of the
// config file.
func writeConfig(w io.Writer, cfg any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"tts": yamlValue(reflect.ValueOf(cfg))}); err != nil {
		return fmt.Errorf("unable to encode configuration: %w", err)
	}
	return enc.Close()
}

var durationType = reflect.TypeOf(time.Duration(0))

// yamlValue converts structs to ordered maps keyed by their yaml tags, with
// durations in their string form.
func yamlValue(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	if v.Kind() != reflect.Struct {
		return v.Interface()
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for i := range v.NumField() {
		field := v.Type().Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}

		var value yaml.Node
		if err := value.Encode(yamlValue(v.Field(i))); err != nil {
			continue
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, &value)
	}
	return node
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
