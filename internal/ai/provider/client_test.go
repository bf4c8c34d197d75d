package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lideeyah/DevAssist-sub000/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.InferenceConfig{
		APIToken:      "hf_testtoken1234567890",
		ChatBaseURL:   srv.URL,
		CompletionURL: srv.URL + "/models",
	})
	return client, srv
}

func TestClient_Chat(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody chatRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  hello from the model  "}},
			},
		})
	})

	text, err := client.Chat(context.Background(), "mistralai/Mistral-7B-Instruct-v0.3",
		[]Message{{Role: "user", Content: "hi"}},
		GenParams{MaxTokens: 512, Temperature: 0.7, TopP: 0.9})

	require.NoError(t, err)
	assert.Equal(t, "hello from the model", text)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer hf_testtoken1234567890", gotAuth)
	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.3", gotBody.Model)
	assert.Equal(t, 512, gotBody.MaxTokens)
	assert.InDelta(t, 0.7, gotBody.Temperature, 0.001)
}

func TestClient_Chat_NoChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Chat(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, GenParams{})
	assert.ErrorContains(t, err, "no choices")
}

func TestClient_Complete(t *testing.T) {
	var gotPath string
	var gotBody completionRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode([]map[string]any{
			{"generated_text": "func main() {}"},
		})
	})

	text, err := client.Complete(context.Background(), "bigcode/starcoder2-15b", "write main",
		GenParams{MaxTokens: 256, Temperature: 0.3})

	require.NoError(t, err)
	assert.Equal(t, "func main() {}", text)
	assert.Equal(t, "/models/bigcode/starcoder2-15b", gotPath)
	assert.Equal(t, "write main", gotBody.Inputs)
	assert.Equal(t, 256, gotBody.Parameters.MaxNewTokens)
	assert.False(t, gotBody.Parameters.ReturnFullText)
}

func TestClient_Complete_ErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model is loading"}`, http.StatusServiceUnavailable)
	})

	_, err := client.Complete(context.Background(), "gpt2", "hi", GenParams{})
	assert.ErrorContains(t, err, "status 503")
}

func TestDecodeCompletion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"array shape", `[{"generated_text":"out"}]`, "out", false},
		{"object shape", `{"generated_text":"out"}`, "out", false},
		{"bare string", `"out"`, "out", false},
		{"empty array", `[]`, "", true},
		{"unknown object", `{"error":"boom"}`, "", true},
		{"number", `42`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCompletion([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, "m", []Message{{Role: "user", Content: "hi"}}, GenParams{})
	assert.Error(t, err)
}

func TestCredentialOK(t *testing.T) {
	assert.True(t, CredentialOK("hf_abcdefghijklmnopqrstuvwx"))
	assert.False(t, CredentialOK(""))
	assert.False(t, CredentialOK("hf_short"))
	assert.False(t, CredentialOK("sk-abcdefghijklmnopqrstuvwx"))
}
