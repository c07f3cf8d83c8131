package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) (*HFClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHFClient(srv.URL, "test-token", zerolog.New(io.Discard)), srv
}

func TestHFClient_New_Validates(t *testing.T) {
	c := NewHFClient("", "", zerolog.New(io.Discard))
	if _, err := c.New(KindText, "  ", ""); err == nil {
		t.Fatalf("expected error for empty model id")
	}
	if _, err := c.New(Kind("translation"), "some/model", ""); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := c.New(KindImage, "nlpconnect/vit-gpt2-image-captioning", "cuda:0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHFPipeline_GenerateText_Basic(t *testing.T) {
	var gotAuth string
	var gotBody hfTextRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/models/openai-community/gpt2", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode([]Record{{GeneratedText: "Hello world, hello"}})
	})
	c, _ := testClient(t, mux)
	p, err := c.New(KindText, "openai-community/gpt2", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	recs, err := p.GenerateText(context.Background(), "Hello world", TextParams{MaxNewTokens: 80, DoSample: true, Temperature: 0.8})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(recs) != 1 || recs[0].GeneratedText != "Hello world, hello" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
	if gotBody.Inputs != "Hello world" || gotBody.Parameters.MaxNewTokens != 80 || !gotBody.Options.WaitForModel {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
}

func TestHFPipeline_GenerateText_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/openai-community/gpt2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"error": "Model openai-community/gpt2 is currently loading", "estimated_time": 20.0})
	})
	c, _ := testClient(t, mux)
	p, _ := c.New(KindText, "openai-community/gpt2", "")
	_, err := p.GenerateText(context.Background(), "hi", TextParams{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsPipelineError(err) {
		t.Fatalf("expected pipeline error, got %T: %v", err, err)
	}
}

func TestHFPipeline_CaptionImage_RawBody(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	mux := http.NewServeMux()
	mux.HandleFunc("/models/nlpconnect/vit-gpt2-image-captioning", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != string(payload) {
			t.Errorf("body not forwarded verbatim")
		}
		if r.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("x-wait-for-model") != "true" {
			t.Errorf("missing wait header")
		}
		json.NewEncoder(w).Encode([]Record{{GeneratedText: "a cat on a sofa"}})
	})
	c, _ := testClient(t, mux)
	p, _ := c.New(KindImage, "nlpconnect/vit-gpt2-image-captioning", "")
	recs, err := p.CaptionImage(context.Background(), payload, CaptionParams{})
	if err != nil {
		t.Fatalf("caption: %v", err)
	}
	if DisplayText(recs) != "a cat on a sofa" {
		t.Fatalf("unexpected caption: %q", DisplayText(recs))
	}
}

func TestHFPipeline_CaptionImage_JSONParams(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	var gotBody hfCaptionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/models/nlpconnect/vit-gpt2-image-captioning", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode([]Record{{GeneratedText: "a cat on a sofa"}})
	})
	c, _ := testClient(t, mux)
	p, _ := c.New(KindImage, "nlpconnect/vit-gpt2-image-captioning", "")
	recs, err := p.CaptionImage(context.Background(), payload, CaptionParams{MaxNewTokens: 30})
	if err != nil {
		t.Fatalf("caption: %v", err)
	}
	if DisplayText(recs) != "a cat on a sofa" {
		t.Fatalf("unexpected caption: %q", DisplayText(recs))
	}
	img, err := base64.StdEncoding.DecodeString(gotBody.Inputs)
	if err != nil {
		t.Fatalf("inputs not base64: %v", err)
	}
	if string(img) != string(payload) {
		t.Fatalf("image bytes not round-tripped")
	}
	if gotBody.Parameters.MaxNewTokens != 30 || !gotBody.Options.WaitForModel {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
}

func TestHFPipeline_KindMismatch(t *testing.T) {
	c := NewHFClient("", "", zerolog.New(io.Discard))
	tp, _ := c.New(KindText, "openai-community/gpt2", "")
	if _, err := tp.CaptionImage(context.Background(), []byte("x"), CaptionParams{}); err == nil {
		t.Fatalf("text pipeline accepted an image")
	}
	ip, _ := c.New(KindImage, "nlpconnect/vit-gpt2-image-captioning", "")
	if _, err := ip.GenerateText(context.Background(), "x", TextParams{}); err == nil {
		t.Fatalf("image pipeline accepted a prompt")
	}
}

func TestHFPipeline_Load_Status(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status/openai-community/gpt2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(hfStatus{Loaded: true, State: "Loadable"})
	})
	c, _ := testClient(t, mux)
	p, _ := c.New(KindText, "openai-community/gpt2", "")
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestDisplayText(t *testing.T) {
	if got := DisplayText([]Record{{GeneratedText: "hello"}, {GeneratedText: "ignored"}}); got != "hello" {
		t.Fatalf("first record: got %q", got)
	}
	if got := DisplayText([]Record{{}}); got != "" {
		t.Fatalf("absent field should default empty, got %q", got)
	}
	if got := DisplayText(nil); got != "[]" {
		t.Fatalf("empty result fallback: got %q", got)
	}
}
