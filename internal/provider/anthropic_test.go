package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/gateway/internal/auth"
)

func TestAnthropicRequestShape(t *testing.T) {
	var gotVersion, gotKey string
	var gotBody map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		_, _ = w.Write([]byte(`{"choices": [{"finish_reason": "stop", "message": {"role": "assistant", "content": "ok"}}], "usage": {}}`))
	}))
	defer upstream.Close()

	adapter, err := NewAnthropic(upstream.URL, auth.APIKey{In: auth.InHeader, Name: "x-api-key", Value: "secret"}, "claude-test", "2023-06-01")
	require.NoError(t, err)

	decisions, _, err := adapter.Call(context.Background(), userConversation("hi"), nil)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	require.Equal(t, "2023-06-01", gotVersion)
	require.Equal(t, "secret", gotKey)
	require.Equal(t, "claude-test", gotBody["model"])
}
