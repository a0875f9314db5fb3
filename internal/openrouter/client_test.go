package openrouter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testBaseURL = "https://openrouter.test/api/v1"

func newTestClient(t *testing.T, mt *httpmock.MockTransport, instruction string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKey:            "or-key",
		BaseURL:           testBaseURL,
		MaxRetries:        2,
		RetryDelay:        time.Millisecond,
		SystemInstruction: instruction,
		HTTPClient:        &http.Client{Transport: mt},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		want      string
		wantErr   string
		wantCalls int
	}{
		{
			name:      "reply text",
			status:    http.StatusOK,
			body:      `{"choices":[{"message":{"role":"assistant","content":"Here: {\"overall\":{}}"}}]}`,
			want:      `Here: {"overall":{}}`,
			wantCalls: 1,
		},
		{
			name:      "error payload with 200",
			status:    http.StatusOK,
			body:      `{"error":{"message":"model overloaded","code":502}}`,
			wantErr:   "model overloaded",
			wantCalls: 2,
		},
		{
			name:      "no choices",
			status:    http.StatusOK,
			body:      `{"choices":[]}`,
			wantErr:   "no choices",
			wantCalls: 2,
		},
		{
			name:      "http failure",
			status:    http.StatusUnauthorized,
			body:      `{"error":{"message":"bad key"}}`,
			wantErr:   "status 401",
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mt := httpmock.NewMockTransport()
			mt.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
				httpmock.NewStringResponder(tt.status, tt.body))

			text, err := newTestClient(t, mt, "sys").Generate(context.Background(), "p")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, text)
			}
			assert.Equal(t, tt.wantCalls, mt.GetTotalCallCount())
		})
	}
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, mt, "").Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}
