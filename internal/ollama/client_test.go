package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// tagsJSON builds a /api/tags response with the given model names.
func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	type resp struct {
		Models []entry `json:"models"`
	}
	r := resp{}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func matchSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"matchedIds": {Type: "array", Items: &SchemaProperty{Type: "string"}},
		},
		Required: []string{"matchedIds"},
	}
}

func TestIsRunning_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"version":"0.5.7"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
}

func TestIsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL)
	if c.IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("llama3.2:latest", "qwen2.5:7b"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	tests := []struct {
		name string
		want bool
	}{
		{"llama3.2", true},
		{"qwen2.5:7b", true},
		{"qwen2.5", true},
		{"llama3", false},
		{"mistral", false},
	}
	for _, tt := range tests {
		if got := c.HasModel(context.Background(), tt.name); got != tt.want {
			t.Errorf("HasModel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHasModel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if New(srv.URL).HasModel(context.Background(), "llama3.2") {
		t.Error("HasModel() = true on 500")
	}
}

func TestChat_JSONSchema(t *testing.T) {
	var captured struct {
		Model    string         `json:"model"`
		Messages []Message      `json:"messages"`
		Stream   *bool          `json:"stream"`
		Format   *Schema        `json:"format"`
		Options  map[string]any `json:"options"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: `{"matchedIds":["4"]}`},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.Chat(context.Background(), "llama3.2", []Message{
		{Role: "user", Content: "crypto alerts"},
	}, matchSchema())
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result != `{"matchedIds":["4"]}` {
		t.Errorf("result = %q", result)
	}

	if captured.Model != "llama3.2" || captured.Stream == nil || *captured.Stream {
		t.Errorf("request = %+v, want model llama3.2, stream false", captured)
	}
	if captured.Format == nil || captured.Format.Properties["matchedIds"].Items == nil || captured.Format.Properties["matchedIds"].Items.Type != "string" {
		t.Errorf("format items not forwarded: %+v", captured.Format)
	}
	if captured.Options["temperature"] != float64(0) {
		t.Errorf("options = %v, want temperature 0", captured.Options)
	}
}

func TestChat_NoSchemaSendsNoFormat(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"message":{"role":"assistant","content":"hello"}}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL).Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}
	if _, ok := raw["format"]; ok {
		t.Errorf("format sent without schema: %s", raw["format"])
	}
}

func TestChat_ErrorBody(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		wantModel bool
	}{
		{"missing model", http.StatusNotFound, `{"error":"model \"llama9\" not found, try pulling it first"}`, `model "llama9" not found, try pulling it first`, true},
		{"server error", http.StatusInternalServerError, `{"error":"llama runner process has terminated"}`, "llama runner process has terminated", false},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down", false},
		{"empty body", http.StatusInternalServerError, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).Chat(context.Background(), "llama9", []Message{{Role: "user", Content: "x"}}, nil)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("error = %+v, want status %d message %q", apiErr, tt.status, tt.wantMsg)
			}
			if got := errors.Is(err, ErrModelNotFound); got != tt.wantModel {
				t.Errorf("errors.Is(ErrModelNotFound) = %v, want %v", got, tt.wantModel)
			}
		})
	}
}

func TestChat_ErrorInSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"context length exceeded"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "x"}}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message != "context length exceeded" {
		t.Errorf("err = %v, want ollama error", err)
	}
}

func TestChat_RejectsInvalidSchemaWithoutRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	schema := matchSchema()
	schema.Properties["matchedIds"] = SchemaProperty{Type: "array"}

	_, err := New(srv.URL).Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "x"}}, schema)
	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("err = %v, want ErrInvalidSchema", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}
