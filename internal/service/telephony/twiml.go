package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"

	"github.com/davidleathers/fraud-stepup-backend/internal/service/challenge"
)

// SpeechTimeoutSeconds is how long the recognizer waits after speech stops
const SpeechTimeoutSeconds = "3"

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Language      string   `xml:"language,attr"`
	Say           twimlSay `xml:"Say"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderPrompt maps a challenge prompt to TwiML. Prompts that gather speech
// post the result to actionURL.
func RenderPrompt(p challenge.Prompt, actionURL string) (string, error) {
	if strings.TrimSpace(p.Text) == "" {
		return "", errors.New("telephony: prompt text required")
	}
	if p.Gather == p.Hangup {
		return "", errors.New("telephony: prompt must either gather or hang up")
	}

	say := twimlSay{Voice: voiceFor(p.Language), Language: sayLanguage(p.Language), Text: p.Text}

	var r twimlResponse
	if p.Gather {
		if strings.TrimSpace(actionURL) == "" {
			return "", errors.New("telephony: action url required for gather")
		}
		r.Verbs = append(r.Verbs, twimlGather{
			Input:         "speech",
			Action:        actionURL,
			Method:        "POST",
			SpeechTimeout: SpeechTimeoutSeconds,
			Language:      p.Language.SpeechLocale(),
			Say:           say,
		})
		// Reached only when the caller says nothing
		r.Verbs = append(r.Verbs, twimlHangup{})
	} else {
		r.Verbs = append(r.Verbs, say, twimlHangup{})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func voiceFor(lang challenge.Language) string {
	if lang == challenge.LanguageUrdu {
		return "Polly.Aditi"
	}
	return "Polly.Joanna"
}

func sayLanguage(lang challenge.Language) string {
	if lang == challenge.LanguageUrdu {
		return "ur-IN"
	}
	return "en-US"
}
