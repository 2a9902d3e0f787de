package markdown

import "testing"

func TestToPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "heading and paragraph",
			in:   "# Getting Started\n\nInstall the *tool* and run it.\nThen read on.\n",
			want: "Getting Started\n\nInstall the tool and run it. Then read on.",
		},
		{
			name: "code is dropped",
			in:   "Run this:\n\n```sh\nmake install\n```\n\nThe `make` step is slow.\n",
			want: "Run this:\n\nThe make step is slow.",
		},
		{
			name: "links keep their text",
			in:   "See [the docs](https://example.com) or <https://example.org>.\n",
			want: "See the docs or https://example.org.",
		},
		{
			name: "list items are paragraphs",
			in:   "- First item\n- Second item\n\n1. Numbered\n",
			want: "First item\n\nSecond item\n\nNumbered",
		},
		{
			name: "html and rules",
			in:   "<div>hidden</div>\n\nBefore.\n\n---\n\nAfter.\n",
			want: "Before.\n\nAfter.",
		},
		{
			name: "tables",
			in:   "| Name | Age |\n|------|-----|\n| Ada | 36 |\n",
			want: "Name, Age\n\nAda, 36",
		},
		{
			name: "emoji shortcodes",
			in:   "Shipped :tada:\n",
			want: "Shipped party popper",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToPlainText([]byte(tt.in)); got != tt.want {
				t.Errorf("ToPlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
