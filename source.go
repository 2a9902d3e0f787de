package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/muesli/gitcha"
	"golang.org/x/text/unicode/norm"

	"github.com/dgnsrekt/narrate/internal/markdown"
)

var (
	readmeNames        = []string{"README.md", "README", "Readme.md", "Readme", "readme.md", "readme"}
	markdownExtensions = []string{"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown"}
)

// source provides readable text.
type source struct {
	reader io.ReadCloser
	// Path is the absolute path of a file source, empty otherwise.
	Path  string
	Title string
}

// sourceFromArg parses an argument and creates a readable source for it.
func sourceFromArg(arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		return &source{reader: io.NopCloser(os.Stdin), Title: "stdin"}, nil
	}

	// a directory:
	if len(arg) == 0 {
		// use the current working dir if no argument was supplied
		arg = "."
	}
	arg = expandPath(arg)

	st, err := os.Stat(arg)
	if err == nil && st.IsDir() {
		path, err := findInDir(arg)
		if err != nil {
			return nil, err
		}
		arg = path
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	u, err := filepath.Abs(arg)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{reader: r, Path: u, Title: filepath.Base(u)}, nil
}

// sourceFromClipboard reads the system clipboard.
func sourceFromClipboard() (*source, error) {
	s, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read clipboard: %w", err)
	}
	return &source{reader: io.NopCloser(strings.NewReader(s)), Title: "clipboard"}, nil
}

// findInDir returns the README in dir, or else the first markdown file
// found beneath it.
func findInDir(dir string) (string, error) {
	for _, name := range readmeNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}

	ch, err := gitcha.FindFilesExcept(dir, markdownExtensions, nil)
	if err != nil {
		return "", fmt.Errorf("unable to search %s: %w", dir, err)
	}
	var found []string
	for res := range ch {
		found = append(found, res.Path)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no readable files in %s", dir)
	}

	slices.Sort(found)
	log.Debug("found file in directory", "dir", dir, "file", found[0], "candidates", len(found))
	return found[0], nil
}

// readText reads src fully and returns the text to narrate. Markdown is
// reduced to its prose.
func readText(r io.Reader, isMarkdown bool) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read from reader: %w", err)
	}

	text := norm.NFC.String(strings.ToValidUTF8(string(b), "�"))
	if isMarkdown {
		text = markdown.ToPlainText([]byte(removeFrontmatter(text)))
	}
	return text, nil
}

// loadFile reads the text of a file source again.
func loadFile(path string, isMarkdown bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck
	return readText(f, isMarkdown)
}

var errNothingToRead = errors.New("nothing to read")

// removeFrontmatter drops a leading YAML front matter block.
func removeFrontmatter(s string) string {
	rest, ok := strings.CutPrefix(s, "---\n")
	if !ok {
		return s
	}
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return s
	}
	rest = rest[end+len("\n---"):]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

func isMarkdownFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range markdownExtensions {
		if "*"+ext == v {
			return true
		}
	}
	return false
}

func expandPath(path string) string {
	p, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return os.ExpandEnv(p)
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}
