package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ashokbr78/qdrant-mcp-server/internal/config"
	"github.com/ashokbr78/qdrant-mcp-server/internal/domain"
)

func TestNewProvider_UnknownKind(t *testing.T) {
	_, err := NewProvider(context.Background(), config.ProviderConfig{
		Kind:       "azure",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	}, zap.NewNop())

	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewProvider_CloudKindsRequireAPIKey(t *testing.T) {
	for _, kind := range []string{KindOpenAI, KindCohere, KindVoyage} {
		t.Run("kind="+kind, func(t *testing.T) {
			_, err := NewProvider(context.Background(), config.ProviderConfig{
				Kind:       kind,
				Model:      "some-model",
				Dimensions: 1024,
			}, zap.NewNop())

			if !errors.Is(err, domain.ErrMissingCredential) {
				t.Fatalf("expected ErrMissingCredential, got %v", err)
			}
		})
	}
}

func TestNewProvider_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "nomic-embed-text"}},
		})
	}))
	defer srv.Close()

	emb, err := NewProvider(context.Background(), config.ProviderConfig{
		Kind:       KindOllama,
		BaseURL:    srv.URL,
		Model:      "nomic-embed-text",
		Dimensions: 768,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if emb.ModelName() != "nomic-embed-text" {
		t.Errorf("expected model 'nomic-embed-text', got %q", emb.ModelName())
	}
	if emb.Dimensions() != 768 {
		t.Errorf("expected 768 dimensions, got %d", emb.Dimensions())
	}
}

func TestNewProvider_CloudKinds(t *testing.T) {
	for _, kind := range []string{KindOpenAI, KindCohere, KindVoyage} {
		t.Run("kind="+kind, func(t *testing.T) {
			emb, err := NewProvider(context.Background(), config.ProviderConfig{
				Kind:       kind,
				APIKey:     "test-key",
				Model:      "some-model",
				Dimensions: 1024,
			}, zap.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if emb.Dimensions() != 1024 {
				t.Errorf("expected 1024 dimensions, got %d", emb.Dimensions())
			}
		})
	}
}
