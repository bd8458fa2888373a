package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avencia/maestro"
)

func TestClientGenerate(t *testing.T) {
	var gotBody ChatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message:      &ChoiceMessage{Content: "pong"},
				FinishReason: "stop",
			}},
			Usage: &Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
		})
	}))
	defer srv.Close()

	client := New("sk-test", "gpt-test", srv.URL)
	resp, err := client.Generate(context.Background(), maestro.GenerateRequest{
		Messages: []maestro.Message{maestro.UserMessage("ping")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message.Content != "pong" || resp.Finish != maestro.FinishStop {
		t.Errorf("resp = %+v", resp)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Model != "gpt-test" || len(gotBody.Messages) != 1 {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	client := New("", "m", srv.URL)
	_, err := client.Generate(context.Background(), maestro.GenerateRequest{})

	var httpErr *maestro.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %T %v", err, err)
	}
	if httpErr.Status != 429 || httpErr.RetryAfter.Seconds() != 7 {
		t.Errorf("httpErr = %+v", httpErr)
	}
}
