package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// completionResponse is the minimal chat completion body the client reads.
func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func TestClientGenerate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(
			`{"description": "A short course on Go.", "summary": "Go basics."}`,
		))
	}))
	defer srv.Close()

	c := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
	})

	values, err := c.Generate(context.Background(), Request{
		Title:     "Intro to Go",
		Category:  "training",
		SourceURL: "https://example.com/intro",
		Fields:    []string{"description", "summary"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if values["description"] != "A short course on Go." {
		t.Errorf("description = %q", values["description"])
	}
	if values["summary"] != "Go basics." {
		t.Errorf("summary = %q", values["summary"])
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", gotBody["model"])
	}
}

func TestClientGenerateNoFields(t *testing.T) {
	// No requested fields means no API call at all.
	c := NewClient(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})

	values, err := c.Generate(context.Background(), Request{Title: "X"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestClientGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), Request{
		Title:  "X",
		Fields: []string{"description"},
	}); err == nil {
		t.Fatal("expected an error from a 503 response")
	}
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		fields  []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"description": "text"}`,
			fields:  []string{"description"},
			want:    map[string]string{"description": "text"},
		},
		{
			name:    "fenced object",
			content: "```json\n{\"description\": \"text\"}\n```",
			fields:  []string{"description"},
			want:    map[string]string{"description": "text"},
		},
		{
			name:    "extra keys dropped",
			content: `{"description": "text", "rating": "5"}`,
			fields:  []string{"description"},
			want:    map[string]string{"description": "text"},
		},
		{
			name:    "missing keys degrade",
			content: `{"summary": "text"}`,
			fields:  []string{"description", "summary"},
			want:    map[string]string{"summary": "text"},
		},
		{
			name:    "blank values dropped",
			content: `{"description": "  "}`,
			fields:  []string{"description"},
			want:    map[string]string{},
		},
		{
			name:    "no object",
			content: "I cannot help with that.",
			fields:  []string{"description"},
			wantErr: true,
		},
		{
			name:    "malformed object",
			content: `{"description": `,
			fields:  []string{"description"},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFields(tc.content, tc.fields)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseFields(%q) succeeded, want error", tc.content)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFields(%q): %v", tc.content, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
