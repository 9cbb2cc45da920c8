package telephony

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-stepup-backend/internal/service/challenge"
)

func TestRenderPrompt_Gather(t *testing.T) {
	action := "https://fsu.example.com/v1/voice/input?lang=urdu&transactionId=tx-1"

	out, err := RenderPrompt(challenge.GreetingPrompt(challenge.LanguageUrdu), action)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, `<Gather input="speech"`)
	assert.Contains(t, out, `action="https://fsu.example.com/v1/voice/input?lang=urdu&amp;transactionId=tx-1"`)
	assert.Contains(t, out, `speechTimeout="3"`)
	assert.Contains(t, out, `language="ur-PK"`)
	assert.Contains(t, out, "<Hangup></Hangup>")

	var parsed struct {
		Gather struct {
			Action string `xml:"action,attr"`
			Say    string `xml:"Say"`
		} `xml:"Gather"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, action, parsed.Gather.Action)
	assert.Equal(t, challenge.GreetingPrompt(challenge.LanguageUrdu).Text, parsed.Gather.Say)
}

func TestRenderPrompt_Hangup(t *testing.T) {
	out, err := RenderPrompt(challenge.VerifiedPrompt(challenge.LanguageEnglish), "")
	require.NoError(t, err)

	assert.NotContains(t, out, "<Gather")
	assert.Contains(t, out, `<Say voice="Polly.Joanna" language="en-US">Thank you.`)
	assert.Contains(t, out, "<Hangup></Hangup>")
}

func TestRenderPrompt_Errors(t *testing.T) {
	_, err := RenderPrompt(challenge.Prompt{Text: "hi", Gather: true}, "")
	assert.Error(t, err)

	_, err = RenderPrompt(challenge.Prompt{Text: "", Hangup: true}, "")
	assert.Error(t, err)

	_, err = RenderPrompt(challenge.Prompt{Text: "hi"}, "")
	assert.Error(t, err)
}
