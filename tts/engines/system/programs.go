package system

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/dgnsrekt/narrate/tts"
)

// program describes how to drive one speech program.
type program struct {
	name        string
	args        func(voice string, wpm int) []string
	voicesArgs  []string
	parseVoices func(out string) []tts.Voice
}

func espeak(name string) program {
	return program{
		name: name,
		args: func(voice string, wpm int) []string {
			args := []string{"--stdin", "-s", strconv.Itoa(clamp(wpm, 80, 500))}
			if voice != "" {
				args = append(args, "-v", voice)
			}
			return args
		},
		voicesArgs:  []string{"--voices"},
		parseVoices: parseEspeakVoices,
	}
}

var say = program{
	name: "say",
	args: func(voice string, wpm int) []string {
		args := []string{"-r", strconv.Itoa(wpm)}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		return append(args, "-f", "-")
	},
	voicesArgs:  []string{"-v", "?"},
	parseVoices: parseSayVoices,
}

func powershell(name string) program {
	return program{
		name: name,
		args: func(voice string, wpm int) []string {
			return []string{"-NoProfile", "-NonInteractive", "-Command", speechScript(voice, wpm)}
		},
		voicesArgs: []string{"-NoProfile", "-NonInteractive", "-Command",
			"Add-Type -AssemblyName System.Speech; " +
				"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | " +
				"ForEach-Object { $v = $_.VoiceInfo; \"$($v.Name)|$($v.Culture)|$($v.Gender)\" }"},
		parseVoices: parsePowerShellVoices,
	}
}

// speechScript returns a PowerShell script that speaks stdin.
func speechScript(voice string, wpm int) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	fmt.Fprintf(&b, "$s.Rate = %d; ", sapiRate(wpm))
	if voice != "" {
		fmt.Fprintf(&b, "$s.SelectVoice('%s'); ", strings.ReplaceAll(voice, "'", "''"))
	}
	b.WriteString("$s.Speak([Console]::In.ReadToEnd())")
	return b.String()
}

// sapiRate maps words per minute onto System.Speech's -10 to 10 scale, where
// 0 is about 175 words per minute.
func sapiRate(wpm int) int {
	r := int(math.Round((float64(wpm)/175 - 1) * 10))
	return clamp(r, -10, 10)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// parseEspeakVoices parses the table printed by espeak --voices:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 10)
func parseEspeakVoices(out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, tts.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: languageTag(fields[1]),
			Gender:   gender(fields[2][strings.LastIndex(fields[2], "/")+1:]),
		})
	}
	return voices
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// parseSayVoices parses the list printed by say -v '?':
//
//	Alex                en_US    # Most people recognize me by my voice.
func parseSayVoices(out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		voices = append(voices, tts.Voice{
			ID:       m[1],
			Name:     m[1],
			Language: languageTag(m[2]),
		})
	}
	return voices
}

// parsePowerShellVoices parses "name|culture|gender" lines.
func parsePowerShellVoices(out string) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(parts) != 3 || parts[0] == "" {
			continue
		}
		voices = append(voices, tts.Voice{
			ID:       parts[0],
			Name:     parts[0],
			Language: languageTag(parts[1]),
			Gender:   gender(parts[2]),
		})
	}
	return voices
}

// languageTag canonicalizes tags such as "en_us" to "en-US". Unknown tags are
// returned unchanged.
func languageTag(s string) string {
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return s
	}
	return tag.String()
}

func gender(s string) string {
	switch strings.ToLower(s) {
	case "m", "male":
		return "male"
	case "f", "female":
		return "female"
	case "neutral":
		return "neutral"
	}
	return ""
}
