package caption

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var testImage = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestHuggingFaceCaption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/"+ModelBLIPBase {
			t.Errorf("Expected model path, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer hf-test" {
			t.Errorf("Expected Bearer hf-test, got %s", auth)
		}

		var body struct {
			Inputs     string `json:"inputs"`
			Parameters struct {
				MaxNewTokens int `json:"max_new_tokens"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		img, err := base64.StdEncoding.DecodeString(body.Inputs)
		if err != nil || string(img) != string(testImage) {
			t.Errorf("image not round-tripped through base64")
		}
		if body.Parameters.MaxNewTokens != 40 {
			t.Errorf("Expected max_new_tokens 40, got %d", body.Parameters.MaxNewTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"generated_text": "a dog sitting on a couch"}]`))
	}))
	defer server.Close()

	p, err := NewHuggingFace(WithBaseURL(server.URL), WithAPIKey("hf-test"))
	if err != nil {
		t.Fatalf("NewHuggingFace failed: %v", err)
	}
	defer p.Close()

	res, err := p.Caption(context.Background(), &Request{Image: testImage, MaxNewTokens: 40})
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if res.Text != "A dog sitting on a couch." {
		t.Errorf("Unexpected caption: %q", res.Text)
	}
	if res.Raw != "a dog sitting on a couch" {
		t.Errorf("Unexpected raw caption: %q", res.Raw)
	}
	if res.Provider != "huggingface" || res.Model != ModelBLIPBase {
		t.Errorf("Unexpected provenance: %s/%s", res.Provider, res.Model)
	}
}

func TestHuggingFaceSingleObjectResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generated_text": "two birds on a wire"}`))
	}))
	defer server.Close()

	p, _ := NewHuggingFace(WithBaseURL(server.URL))
	res, err := p.Caption(context.Background(), &Request{Image: testImage})
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if res.Text != "Two birds on a wire." {
		t.Errorf("Unexpected caption: %q", res.Text)
	}
}

func TestHuggingFaceRetriesModelLoading(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": "Model is currently loading", "estimated_time": 2.5}`))
			return
		}
		w.Write([]byte(`[{"generated_text": "a bicycle"}]`))
	}))
	defer server.Close()

	p, _ := NewHuggingFace(WithBaseURL(server.URL), WithRetry(2, time.Millisecond))
	res, err := p.Caption(context.Background(), &Request{Image: testImage})
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if res.Text != "A bicycle." {
		t.Errorf("Unexpected caption: %q", res.Text)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestHuggingFaceModelLoadingExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "Model is currently loading", "estimated_time": 20}`))
	}))
	defer server.Close()

	p, _ := NewHuggingFace(WithBaseURL(server.URL), WithRetry(1, time.Millisecond))
	_, err := p.Caption(context.Background(), &Request{Image: testImage})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsModelLoading() || apiErr.Code != "model_loading" {
		t.Errorf("Expected model loading error, got %+v", apiErr)
	}
}

func TestHuggingFaceUnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Invalid credentials in Authorization header"}`))
	}))
	defer server.Close()

	p, _ := NewHuggingFace(WithBaseURL(server.URL), WithRetry(3, time.Millisecond))
	_, err := p.Caption(context.Background(), &Request{Image: testImage})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() {
		t.Fatalf("Expected unauthorized APIError, got %v", err)
	}
	if apiErr.Message != "Invalid credentials in Authorization header" {
		t.Errorf("Unexpected message: %q", apiErr.Message)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestHuggingFaceEmptyCaption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"generated_text": "   "}]`))
	}))
	defer server.Close()

	p, _ := NewHuggingFace(WithBaseURL(server.URL))
	_, err := p.Caption(context.Background(), &Request{Image: testImage})
	if !errors.Is(err, ErrEmptyCaption) {
		t.Errorf("Expected ErrEmptyCaption, got %v", err)
	}
}

func TestHuggingFaceNoImage(t *testing.T) {
	p, _ := NewHuggingFace(WithBaseURL("http://127.0.0.1:1"))
	_, err := p.Caption(context.Background(), &Request{})
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestHuggingFaceHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	good, _ := NewHuggingFace(WithBaseURL(server.URL), WithAPIKey("good"))
	if err := good.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy, got %v", err)
	}

	bad, _ := NewHuggingFace(WithBaseURL(server.URL), WithAPIKey("bad"))
	if err := bad.Health(context.Background()); err == nil {
		t.Error("Expected health error for bad token")
	}
}
