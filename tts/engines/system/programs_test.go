package system

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/narrate/tts"
)

func TestProgramArgs(t *testing.T) {
	tests := []struct {
		path  string
		voice string
		wpm   int
		want  []string
	}{
		{"/usr/bin/espeak-ng", "", 175, []string{"--stdin", "-s", "175"}},
		{"espeak", "en-gb", 700, []string{"--stdin", "-s", "500", "-v", "en-gb"}},
		{"say", "Alex", 200, []string{"-r", "200", "-v", "Alex", "-f", "-"}},
		{"/usr/bin/say", "", 90, []string{"-r", "90", "-f", "-"}},
	}

	for _, tt := range tests {
		prog, ok := programFor(tt.path)
		if !ok {
			t.Fatalf("programFor(%q) not recognized", tt.path)
		}
		if got := prog.args(tt.voice, tt.wpm); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s args(%q, %d) = %v, want %v", tt.path, tt.voice, tt.wpm, got, tt.want)
		}
	}
}

func TestProgramFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{`C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`, "powershell"},
		{"pwsh", "pwsh"},
		{"/usr/bin/say", "say"},
		{"ESPEAK-NG", "espeak-ng"},
		{"/usr/bin/festival", ""},
	}

	for _, tt := range tests {
		prog, ok := programFor(strings.ReplaceAll(tt.path, `\`, "/"))
		if ok != (tt.want != "") || prog.name != tt.want {
			t.Errorf("programFor(%q) = %q, %v; want %q", tt.path, prog.name, ok, tt.want)
		}
	}
}

func TestSpeechScript(t *testing.T) {
	got := speechScript("Microsoft Zira's Voice", 350)

	for _, want := range []string{
		"$s.Rate = 10;",
		"$s.SelectVoice('Microsoft Zira''s Voice');",
		"[Console]::In.ReadToEnd()",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("script %q does not contain %q", got, want)
		}
	}
	if strings.Contains(speechScript("", 175), "SelectVoice") {
		t.Error("script selects a voice when none is set")
	}
}

func TestSAPIRate(t *testing.T) {
	tests := []struct {
		wpm  int
		want int
	}{
		{175, 0},
		{350, 10},
		{1000, 10},
		{88, -5},
		{0, -10},
	}

	for _, tt := range tests {
		if got := sapiRate(tt.wpm); got != tt.want {
			t.Errorf("sapiRate(%d) = %d, want %d", tt.wpm, got, tt.want)
		}
	}
}

func TestParseEspeakVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en           (en 2)
 5  en-us           --/F      English_(America)  gmw/en-US            (en 3)
`
	want := []tts.Voice{
		{ID: "af", Name: "Afrikaans", Language: "af", Gender: "male"},
		{ID: "en-gb", Name: "English (Great Britain)", Language: "en-GB", Gender: "male"},
		{ID: "en-us", Name: "English (America)", Language: "en-US", Gender: "female"},
	}

	if got := parseEspeakVoices(out); !reflect.DeepEqual(got, want) {
		t.Errorf("parseEspeakVoices() = %+v, want %+v", got, want)
	}
}

func TestParseSayVoices(t *testing.T) {
	out := `Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
Thomas              fr_FR    # Bonjour, je m'appelle Thomas.
garbage line
`
	want := []tts.Voice{
		{ID: "Alex", Name: "Alex", Language: "en-US"},
		{ID: "Bad News", Name: "Bad News", Language: "en-US"},
		{ID: "Thomas", Name: "Thomas", Language: "fr-FR"},
	}

	if got := parseSayVoices(out); !reflect.DeepEqual(got, want) {
		t.Errorf("parseSayVoices() = %+v, want %+v", got, want)
	}
}

func TestParsePowerShellVoices(t *testing.T) {
	out := "Microsoft David Desktop|en-US|Male\r\nMicrosoft Hedda Desktop|de-DE|Female\r\n\r\n"
	want := []tts.Voice{
		{ID: "Microsoft David Desktop", Name: "Microsoft David Desktop", Language: "en-US", Gender: "male"},
		{ID: "Microsoft Hedda Desktop", Name: "Microsoft Hedda Desktop", Language: "de-DE", Gender: "female"},
	}

	if got := parsePowerShellVoices(out); !reflect.DeepEqual(got, want) {
		t.Errorf("parsePowerShellVoices() = %+v, want %+v", got, want)
	}
}
