package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/pkg/provider/embeddings/ollama"
)

// unreachableURL points at a port nothing listens on, for tests that must not
// issue any request.
const unreachableURL = "http://127.0.0.1:19999"

// embedServer serves /api/embed, checks the request shape, and answers with
// one canned vector per input text.
func embedServer(t *testing.T, wantModel string, vectors [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/embed" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Model != wantModel {
			t.Errorf("model: got %q, want %q", req.Model, wantModel)
		}

		out := vectors
		if len(out) > len(req.Input) {
			out = out[:len(req.Input)]
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"model":      wantModel,
			"embeddings": out,
		}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := ollama.New("", ""); err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	p, err := ollama.New("", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.ModelID(); got != "nomic-embed-text" {
		t.Errorf("ModelID(): got %q, want nomic-embed-text", got)
	}
}

func TestEmbed_Single(t *testing.T) {
	want := []float32{0.25, -0.5, 0.75}
	srv := embedServer(t, "nomic-embed-text", [][]float32{want})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Embed(context.Background(), "turn off the kitchen lights")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vec[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	vecs := [][]float32{
		{0.1, 0.2},
		{0.3, 0.4},
		{0.5, 0.6},
	}
	srv := embedServer(t, "nomic-embed-text", vecs)
	defer srv.Close()

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	texts := []string{
		"my anniversary is in June",
		"the wifi password is on the fridge",
		"I parked on level three",
	}
	got, err := p.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("length: got %d, want %d", len(got), len(texts))
	}
	for i, wantVec := range vecs {
		for j, wantVal := range wantVec {
			if got[i][j] != wantVal {
				t.Errorf("vec[%d][%d]: got %v, want %v", i, j, got[i][j], wantVal)
			}
		}
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	// Unreachable server: an empty batch must short-circuit before any
	// network I/O.
	p, err := ollama.New(unreachableURL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil): unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("EmbedBatch(nil): expected nil, got %v", got)
	}
}

func TestDimensions_KnownModels(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"nomic-embed-text", 768},
		{"nomic-embed-text:latest", 768},
		{"mxbai-embed-large", 1024},
		{"all-minilm", 384},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			// Known models must resolve without touching the server.
			p, err := ollama.New(unreachableURL, tt.model)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := p.Dimensions(); got != tt.want {
				t.Errorf("Dimensions(): got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDimensions_ProbesUnknownModelOnce(t *testing.T) {
	const dim = 512
	probeVec := make([]float32, dim)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      "custom-embed",
			"embeddings": [][]float32{probeVec},
		})
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "custom-embed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := range 3 {
		if got := p.Dimensions(); got != dim {
			t.Errorf("call %d: Dimensions(): got %d, want %d", i, got, dim)
		}
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 probe request, got %d", calls)
	}
}

func TestDimensions_ExplicitOptionSkipsProbe(t *testing.T) {
	p, err := ollama.New(unreachableURL, "custom-model", ollama.WithDimensions(256))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Dimensions(); got != 256 {
		t.Errorf("Dimensions(): got %d, want 256", got)
	}
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte("not-json"))
			},
		},
		{
			name: "empty embeddings",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"model":      "nomic-embed-text",
					"embeddings": [][]float32{},
				})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, err := ollama.New(srv.URL, "nomic-embed-text")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if _, err := p.Embed(context.Background(), "hello"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEmbed_ServerDown(t *testing.T) {
	p, err := ollama.New(unreachableURL, "nomic-embed-text",
		ollama.WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for unreachable server, got nil")
	}
}

func TestEmbed_ContextCancelled(t *testing.T) {
	// stopCh unblocks the handler at teardown so srv.Close() can drain
	// connections instead of hanging on the stuck goroutine.
	stopCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stopCh:
		}
	}))
	defer srv.Close()
	defer close(stopCh)

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := p.Embed(ctx, "hello"); err == nil {
		t.Fatal("expected context cancellation error, got nil")
	}
}
