package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultEndpoint is the hosted Hugging Face Inference API.
const DefaultEndpoint = "https://api-inference.huggingface.co"

// HFClient implements Factory against the Hugging Face Inference API. One
// client is shared by all pipelines it creates; pipelines themselves are
// cheap handles carrying only task kind and model identity.
type HFClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHFClient constructs a Factory talking to baseURL (DefaultEndpoint when
// empty) with an optional bearer token.
func NewHFClient(baseURL, token string, log zerolog.Logger) *HFClient {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	// Timeout stays 0: model loads on the hosted side can take minutes, so
	// deadlines are carried by the caller's context instead.
	return &HFClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        log,
	}
}

// New returns a Pipeline for the given task kind and model identifier.
func (c *HFClient) New(kind Kind, modelID, device string) (Pipeline, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("empty model id")
	}
	switch kind {
	case KindText, KindImage:
	default:
		return nil, fmt.Errorf("unknown pipeline kind: %q", kind)
	}
	if device != "" {
		// Placement is owned by the hosted service; the hint is recorded only.
		c.log.Debug().Str("model", modelID).Str("device", device).Msg("device hint ignored by hosted backend")
	}
	return &hfPipeline{client: c, kind: kind, modelID: modelID}, nil
}

// hfPipeline is one (kind, model) handle over the shared client.
type hfPipeline struct {
	client  *HFClient
	kind    Kind
	modelID string
}

// hfStatus is the subset of GET /status/{model} we care about.
type hfStatus struct {
	Loaded bool   `json:"loaded"`
	State  string `json:"state"`
}

// hfTextRequest is the JSON payload for hosted text-generation calls.
type hfTextRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens int     `json:"max_new_tokens,omitempty"`
		DoSample     bool    `json:"do_sample"`
		Temperature  float64 `json:"temperature,omitempty"`
	} `json:"parameters"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// hfErrorBody is the error payload the API returns on failures. Estimated
// time accompanies 503 "model is loading" responses.
type hfErrorBody struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

func (p *hfPipeline) Load(ctx context.Context) error {
	url := p.client.baseURL + "/status/" + p.modelID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ErrPipeline("build status request", err)
	}
	p.client.authorize(req)
	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return ErrPipeline("model status", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return p.client.decodeError(resp)
	}
	var st hfStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return ErrPipeline("decode status", err)
	}
	p.client.log.Debug().
		Str("model", p.modelID).
		Bool("loaded", st.Loaded).
		Str("state", st.State).
		Msg("pipeline status")
	return nil
}

func (p *hfPipeline) GenerateText(ctx context.Context, prompt string, tp TextParams) ([]Record, error) {
	if p.kind != KindText {
		return nil, fmt.Errorf("pipeline kind %q cannot generate text", p.kind)
	}
	var payload hfTextRequest
	payload.Inputs = prompt
	payload.Parameters.MaxNewTokens = tp.MaxNewTokens
	payload.Parameters.DoSample = tp.DoSample
	payload.Parameters.Temperature = tp.Temperature
	payload.Options.WaitForModel = true
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrPipeline("encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.modelURL(), bytes.NewReader(body))
	if err != nil {
		return nil, ErrPipeline("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.client.authorize(req)
	return p.client.doRecords(req)
}

// hfCaptionRequest is the JSON payload for parameterized image-to-text
// calls; the image travels base64-encoded in the inputs field.
type hfCaptionRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens int `json:"max_new_tokens,omitempty"`
	} `json:"parameters"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

func (p *hfPipeline) CaptionImage(ctx context.Context, img []byte, cp CaptionParams) ([]Record, error) {
	if p.kind != KindImage {
		return nil, fmt.Errorf("pipeline kind %q cannot caption images", p.kind)
	}
	// Binary uploads have no channel for generation parameters, so calls
	// that set any use the JSON form instead.
	if cp.MaxNewTokens > 0 {
		return p.captionJSON(ctx, img, cp)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.modelURL(), bytes.NewReader(img))
	if err != nil {
		return nil, ErrPipeline("build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-wait-for-model", "true")
	p.client.authorize(req)
	return p.client.doRecords(req)
}

func (p *hfPipeline) captionJSON(ctx context.Context, img []byte, cp CaptionParams) ([]Record, error) {
	var payload hfCaptionRequest
	payload.Inputs = base64.StdEncoding.EncodeToString(img)
	payload.Parameters.MaxNewTokens = cp.MaxNewTokens
	payload.Options.WaitForModel = true
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrPipeline("encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.modelURL(), bytes.NewReader(body))
	if err != nil {
		return nil, ErrPipeline("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.client.authorize(req)
	return p.client.doRecords(req)
}

func (p *hfPipeline) modelURL() string {
	return p.client.baseURL + "/models/" + p.modelID
}

func (c *HFClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doRecords executes req and decodes the standard record-sequence response.
func (c *HFClient) doRecords(req *http.Request) ([]Record, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ErrPipeline("pipeline call", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError(resp)
	}
	var recs []Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, ErrPipeline("decode response", err)
	}
	return recs, nil
}

// decodeError turns a non-2xx response into a pipeline error, preferring the
// API's own error message when the body carries one.
func (c *HFClient) decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var eb hfErrorBody
	if err := json.Unmarshal(b, &eb); err == nil && eb.Error != "" {
		if eb.EstimatedTime > 0 {
			return ErrPipeline(fmt.Sprintf("%s (estimated %.0fs)", eb.Error, eb.EstimatedTime), nil)
		}
		return ErrPipeline(eb.Error, nil)
	}
	return ErrPipeline(fmt.Sprintf("pipeline call failed: %s", resp.Status), nil)
}
