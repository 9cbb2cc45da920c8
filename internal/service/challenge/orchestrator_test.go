package challenge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Attempt(ctx context.Context, transactionID, code string) (verification.AttemptResult, error) {
	args := m.Called(ctx, transactionID, code)
	return args.Get(0).(verification.AttemptResult), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) ResolveVerification(ctx context.Context, transactionID string, status verification.Status) error {
	args := m.Called(ctx, transactionID, status)
	return args.Error(0)
}

func TestOrchestrator_HandleUtterance(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		lang       string
		utterance  string
		setupMocks func(v *mockVerifier, n *mockNotifier)
		wantKind   PromptKind
		wantLang   Language
		wantHangup bool
		wantRemain int
	}{
		{
			name:       "unparseable input re-prompts without attempt",
			lang:       "urdu",
			utterance:  "جی ہاں",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {},
			wantKind:   PromptReprompt,
			wantLang:   LanguageUrdu,
		},
		{
			name:       "one digit re-prompts",
			lang:       "english",
			utterance:  "four",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {},
			wantKind:   PromptReprompt,
			wantLang:   LanguageEnglish,
		},
		{
			name:      "incorrect code keeps listening",
			lang:      "english",
			utterance: "one two",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {
				v.On("Attempt", ctx, "tx-1", "12").Return(verification.AttemptResult{
					Outcome: verification.OutcomeIncorrect, Attempts: 1, Remaining: 2,
				}, nil)
			},
			wantKind:   PromptIncorrect,
			wantLang:   LanguageEnglish,
			wantRemain: 2,
		},
		{
			name:      "verified hangs up and notifies",
			lang:      "urdu",
			utterance: "چار پانچ",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {
				v.On("Attempt", ctx, "tx-1", "45").Return(verification.AttemptResult{
					Outcome: verification.OutcomeVerified, Attempts: 1,
				}, nil)
				n.On("ResolveVerification", ctx, "tx-1", verification.StatusVerified).Return(nil)
			},
			wantKind:   PromptVerified,
			wantLang:   LanguageUrdu,
			wantHangup: true,
		},
		{
			name:      "blocked hangs up even when notify fails",
			lang:      "english",
			utterance: "zero zero",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {
				v.On("Attempt", ctx, "tx-1", "00").Return(verification.AttemptResult{
					Outcome: verification.OutcomeBlocked, Attempts: 3,
				}, nil)
				n.On("ResolveVerification", ctx, "tx-1", verification.StatusBlocked).Return(errors.New("db down"))
			},
			wantKind:   PromptBlocked,
			wantLang:   LanguageEnglish,
			wantHangup: true,
		},
		{
			name:      "missing session fails and hangs up",
			lang:      "french",
			utterance: "one two",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {
				v.On("Attempt", ctx, "tx-1", "12").Return(verification.AttemptResult{},
					fmt.Errorf("%w: transaction tx-1", verification.ErrSessionNotFound))
			},
			wantKind:   PromptFailure,
			wantLang:   LanguageEnglish,
			wantHangup: true,
		},
		{
			name:      "store error fails and hangs up",
			lang:      "urdu",
			utterance: "one two",
			setupMocks: func(v *mockVerifier, n *mockNotifier) {
				v.On("Attempt", ctx, "tx-1", "12").Return(verification.AttemptResult{}, errors.New("redis down"))
			},
			wantKind:   PromptFailure,
			wantLang:   LanguageUrdu,
			wantHangup: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := new(mockVerifier)
			n := new(mockNotifier)
			tt.setupMocks(v, n)

			o := NewOrchestrator(v, n, zaptest.NewLogger(t))
			p := o.HandleUtterance(ctx, "tx-1", tt.lang, tt.utterance)

			assert.Equal(t, tt.wantKind, p.Kind)
			assert.Equal(t, tt.wantLang, p.Language)
			assert.Equal(t, tt.wantHangup, p.Hangup)
			assert.Equal(t, !tt.wantHangup, p.Gather)
			assert.Equal(t, tt.wantRemain, p.Remaining)
			assert.NotEmpty(t, p.Text)
			v.AssertExpectations(t)
			n.AssertExpectations(t)
			if tt.wantKind == PromptReprompt {
				v.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrchestrator_Greeting(t *testing.T) {
	o := NewOrchestrator(new(mockVerifier), nil, zaptest.NewLogger(t))

	urdu := o.Greeting("tx-1", "urdu")
	assert.Equal(t, PromptGreeting, urdu.Kind)
	assert.Equal(t, LanguageUrdu, urdu.Language)
	assert.True(t, urdu.Gather)

	fallback := o.Greeting("tx-1", "")
	assert.Equal(t, LanguageEnglish, fallback.Language)
	assert.Contains(t, fallback.Text, "last two digits")
}

func TestIncorrectPrompt_IncludesRemaining(t *testing.T) {
	assert.Contains(t, IncorrectPrompt(LanguageEnglish, 2).Text, "2 attempts")
	assert.Contains(t, IncorrectPrompt(LanguageUrdu, 1).Text, "1")
}
