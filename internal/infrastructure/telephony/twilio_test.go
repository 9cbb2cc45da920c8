package telephony

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, baseURL string, retries int) *TwilioProvider {
	t.Helper()
	p, err := NewTwilioProvider(TwilioConfig{
		AccountSID:        "AC123",
		AuthToken:         "secret",
		APIBaseURL:        baseURL,
		Timeout:           time.Second,
		MaxRetries:        retries,
		InitialRetryDelay: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return p
}

func TestTwilioProvider_InitiateCall(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Calls.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA42","status":"queued"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, 0)
	sid, err := p.InitiateCall(context.Background(), "+15550001111", "+923001234567",
		"https://hooks.example.com/v1/voice/twiml?transactionId=t1", "https://hooks.example.com/v1/voice/status?transactionId=t1")
	require.NoError(t, err)
	assert.Equal(t, "CA42", sid)

	assert.Equal(t, "+923001234567", form.Get("To"))
	assert.Equal(t, "+15550001111", form.Get("From"))
	assert.Equal(t, "https://hooks.example.com/v1/voice/twiml?transactionId=t1", form.Get("Url"))
	assert.Equal(t, "POST", form.Get("StatusCallbackMethod"))
	assert.Equal(t, []string{"initiated", "ringing", "answered", "completed"}, form["StatusCallbackEvent"])
	assert.Equal(t, "twilio", p.GetProviderName())
}

func TestTwilioProvider_Retries(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		retries    int
		wantErr    bool
		wantStatus int
		wantCalls  int32
	}{
		{name: "retries rate limit", statuses: []int{429, 429, 201}, retries: 3, wantCalls: 3},
		{name: "rate limit gives up after max retries", statuses: []int{429, 429, 429}, retries: 2, wantErr: true, wantStatus: 429, wantCalls: 3},
		{name: "server error is not re-posted", statuses: []int{502, 201}, retries: 3, wantErr: true, wantStatus: 502, wantCalls: 1},
		{name: "request timeout is not re-posted", statuses: []int{408, 201}, retries: 3, wantErr: true, wantStatus: 408, wantCalls: 1},
		{name: "client error is permanent", statuses: []int{400, 201}, retries: 3, wantErr: true, wantStatus: 400, wantCalls: 1},
		{name: "auth error is permanent", statuses: []int{401}, retries: 3, wantErr: true, wantStatus: 401, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.statuses[len(tt.statuses)-1]
				if int(n) <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				w.WriteHeader(status)
				if status == http.StatusCreated {
					_, _ = w.Write([]byte(`{"sid":"CA1"}`))
					return
				}
				_, _ = fmt.Fprintf(w, `{"code":20003,"message":"nope","status":%d}`, status)
			}))
			defer srv.Close()

			sid, err := newTestProvider(t, srv.URL, tt.retries).
				InitiateCall(context.Background(), "+15550001111", "+923001234567", "https://x/voice", "")
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, sid)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.ProviderStatus())
				assert.Equal(t, 20003, apiErr.ProviderCode())
			} else {
				require.NoError(t, err)
				assert.Equal(t, "CA1", sid)
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestTwilioProvider_RetriesUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newTestProvider(t, addr, 2).
		InitiateCall(context.Background(), "+15550001111", "+923001234567", "https://x/voice", "")

	require.Error(t, err)
	var opErr *net.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "dial", opErr.Op)
	assert.True(t, neverSent(err))
}

func TestAPIError(t *testing.T) {
	err := decodeTwilioError(400, []byte(`{"code":21211,"message":"The 'To' number +923001234567 is not a valid phone number.","status":400}`))
	assert.Equal(t, 400, err.ProviderStatus())
	assert.Equal(t, 21211, err.ProviderCode())
	assert.Contains(t, err.Error(), "code 21211")

	bare := decodeTwilioError(502, []byte("<html>bad gateway</html>"))
	assert.Equal(t, "twilio: status 502", bare.Error())
	assert.Zero(t, bare.ProviderCode())
}

func TestTwilioProvider_MissingSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL, 2).InitiateCall(context.Background(), "+1", "+2", "https://x", "")
	assert.Error(t, err)
}

func TestNewTwilioProvider_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioProvider(TwilioConfig{AccountSID: "AC1"}, nil)
	assert.Error(t, err)
}

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator("token")
	fullURL := "https://hooks.example.com/v1/voice/input?transactionId=t1&lang=ur"
	params := url.Values{
		"SpeechResult": {"چار پانچ"},
		"CallSid":      {"CA1"},
		"Confidence":   {"0.91"},
	}
	sig := v.Sign(fullURL, params)

	assert.True(t, v.Validate(fullURL, params, sig))

	tampered := url.Values{"SpeechResult": {"one two"}, "CallSid": {"CA1"}, "Confidence": {"0.91"}}
	assert.False(t, v.Validate(fullURL, tampered, sig))
	assert.False(t, v.Validate(fullURL+"&x=1", params, sig))
	assert.False(t, NewRequestValidator("other").Validate(fullURL, params, sig))
	assert.False(t, v.Validate(fullURL, params, ""))
}

func TestLogProvider(t *testing.T) {
	p := NewLogProvider(nil)
	sid, err := p.InitiateCall(context.Background(), "+1", "+923001234567", "https://x", "https://y")
	require.NoError(t, err)
	assert.NotEmpty(t, sid)
	assert.Equal(t, "log", p.GetProviderName())
}
