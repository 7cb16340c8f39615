package providers

import (
	"net/http"
	"testing"

	"github.com/c360studio/nomadplan/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Name(t *testing.T) {
	p := &OpenAIProvider{}
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAIProvider_BuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "OpenRouter base URL",
			baseURL: "https://openrouter.ai/api/v1",
			want:    "https://openrouter.ai/api/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "https://api.openai.com/v1/",
			want:    "https://api.openai.com/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.BuildURL(tt.baseURL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIProvider_SharesRequestFormat(t *testing.T) {
	body, err := (&OpenAIProvider{}).BuildRequestBody(llm.ProviderRequest{
		Model:    "gpt-4o-mini",
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"model":"gpt-4o-mini"`)
	assert.Contains(t, string(body), `"response_format":{"type":"json_object"}`)
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	p := &OpenAIProvider{}

	t.Run("bearer token and OpenRouter attribution", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("OPENROUTER_SITE_URL", "https://nomadplan.example")
		t.Setenv("OPENROUTER_SITE_NAME", "nomadplan")

		req, err := http.NewRequest(http.MethodPost, "https://openrouter.ai/api/v1/chat/completions", nil)
		require.NoError(t, err)
		p.SetHeaders(req)

		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		assert.Equal(t, "https://nomadplan.example", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "nomadplan", req.Header.Get("X-Title"))
	})

	t.Run("no headers when env vars are empty", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENROUTER_SITE_URL", "")
		t.Setenv("OPENROUTER_SITE_NAME", "")

		req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
		require.NoError(t, err)
		p.SetHeaders(req)

		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Empty(t, req.Header.Get("HTTP-Referer"))
		assert.Empty(t, req.Header.Get("X-Title"))
	})
}
