package challenge

import (
	"fmt"
	"strings"
)

// Language selects the prompt set
type Language string

const (
	LanguageUrdu    Language = "urdu"
	LanguageEnglish Language = "english"
)

// ParseLanguage maps a caller-supplied language to a supported one. Unknown
// values get English.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urdu", "ur", "ur-pk":
		return LanguageUrdu
	default:
		return LanguageEnglish
	}
}

// SpeechLocale is the recognizer locale for the language
func (l Language) SpeechLocale() string {
	if l == LanguageUrdu {
		return "ur-PK"
	}
	return "en-US"
}

// PromptKind identifies which message a prompt carries
type PromptKind string

const (
	PromptGreeting  PromptKind = "greeting"
	PromptReprompt  PromptKind = "reprompt"
	PromptIncorrect PromptKind = "incorrect"
	PromptVerified  PromptKind = "verified"
	PromptBlocked   PromptKind = "blocked"
	PromptFailure   PromptKind = "failure"
)

// Prompt is the next thing to say to the caller and whether to listen for an
// answer or hang up
type Prompt struct {
	Kind      PromptKind `json:"kind"`
	Language  Language   `json:"language"`
	Text      string     `json:"text"`
	Gather    bool       `json:"gather"`
	Hangup    bool       `json:"hangup"`
	Remaining int        `json:"remaining,omitempty"`
}

type promptSet struct {
	greeting  string
	reprompt  string
	incorrect string // takes the remaining attempt count
	verified  string
	blocked   string
	failure   string
}

var prompts = map[Language]promptSet{
	LanguageUrdu: {
		greeting:  "السلام علیکم۔ میں آپ کے بینک کی طرف سے بات کر رہا ہوں۔ ہم نے آپ کے اکاؤنٹ پر ایک لین دین دیکھا ہے۔ براہ کرم تصدیق کے لیے اپنے شناختی کارڈ کے آخری دو ہندسے بتائیں۔",
		reprompt:  "معاف کیجیے، میں آپ کی بات نہیں سمجھ سکا۔ براہ کرم دو ہندسے دوبارہ بتائیں۔",
		incorrect: "غلط نمبر۔ آپ کے پاس %d کوششیں باقی ہیں۔ براہ کرم دوبارہ کوشش کریں۔",
		verified:  "شکریہ۔ آپ کے لین دین کی تصدیق ہو گئی ہے۔ اللہ حافظ۔",
		blocked:   "تصدیق ناکام ہو گئی۔ آپ کا اکاؤنٹ عارضی طور پر بند کر دیا گیا ہے۔ براہ کرم اپنی برانچ سے رابطہ کریں۔",
		failure:   "معاف کیجیے، ایک خرابی پیش آ گئی ہے۔ ہم آپ سے جلد دوبارہ رابطہ کریں گے۔",
	},
	LanguageEnglish: {
		greeting:  "Hello. This is a call from your bank. We noticed a transaction on your account. Please say the last two digits of your national identity card to verify it.",
		reprompt:  "Sorry, I did not catch that. Please say the two digits again.",
		incorrect: "That is not correct. You have %d attempts remaining. Please try again.",
		verified:  "Thank you. Your transaction has been verified. Goodbye.",
		blocked:   "Verification failed. Your account has been temporarily blocked. Please contact your branch.",
		failure:   "Sorry, something went wrong. We will contact you again shortly.",
	},
}

func setFor(lang Language) promptSet {
	if p, ok := prompts[lang]; ok {
		return p
	}
	return prompts[LanguageEnglish]
}

// GreetingPrompt opens the challenge
func GreetingPrompt(lang Language) Prompt {
	return Prompt{Kind: PromptGreeting, Language: lang, Text: setFor(lang).greeting, Gather: true}
}

// RepromptPrompt asks again without consuming an attempt
func RepromptPrompt(lang Language) Prompt {
	return Prompt{Kind: PromptReprompt, Language: lang, Text: setFor(lang).reprompt, Gather: true}
}

// IncorrectPrompt reports a wrong code and the attempts left
func IncorrectPrompt(lang Language, remaining int) Prompt {
	return Prompt{
		Kind:      PromptIncorrect,
		Language:  lang,
		Text:      fmt.Sprintf(setFor(lang).incorrect, remaining),
		Gather:    true,
		Remaining: remaining,
	}
}

// VerifiedPrompt closes a successful challenge
func VerifiedPrompt(lang Language) Prompt {
	return Prompt{Kind: PromptVerified, Language: lang, Text: setFor(lang).verified, Hangup: true}
}

// BlockedPrompt closes a challenge with exhausted attempts
func BlockedPrompt(lang Language) Prompt {
	return Prompt{Kind: PromptBlocked, Language: lang, Text: setFor(lang).blocked, Hangup: true}
}

// FailurePrompt ends the call after an unexpected error
func FailurePrompt(lang Language) Prompt {
	return Prompt{Kind: PromptFailure, Language: lang, Text: setFor(lang).failure, Hangup: true}
}
