package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries Twilio's request signature
const SignatureHeader = "X-Twilio-Signature"

// RequestValidator checks that webhook calls were signed with our auth token
type RequestValidator struct {
	authToken []byte
}

// NewRequestValidator creates a validator for authToken
func NewRequestValidator(authToken string) *RequestValidator {
	return &RequestValidator{authToken: []byte(authToken)}
}

// Sign computes the signature Twilio sends for fullURL and its POST params
func (v *RequestValidator) Sign(fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, val := range params[k] {
			b.WriteString(k)
			b.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, v.authToken)
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Validate reports whether signature matches
func (v *RequestValidator) Validate(fullURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	expected := v.Sign(fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
