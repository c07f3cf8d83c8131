// Package httpapi exposes the two pipeline operations headlessly so the same
// adapters the GUI drives can be scripted against. One text adapter and one
// caption adapter are constructed at startup and reused across requests.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hfstudio/internal/adapter"
	"hfstudio/internal/catalog"
	"hfstudio/internal/pipeline"
	"hfstudio/pkg/types"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody int64 = 1 << 20

// maxImageBody bounds raw image uploads for captioning.
const maxImageBody int64 = 20 << 20

// Server holds the adapters and catalog behind the HTTP surface.
type Server struct {
	text *adapter.TextAdapter
	cap  *adapter.CaptionAdapter
	cat  *catalog.Catalog
	log  zerolog.Logger
}

// New constructs a Server with one adapter per task kind, chosen from the
// first descriptor of each kind in the catalog.
func New(factory pipeline.Factory, cat *catalog.Catalog, device string, log zerolog.Logger) *Server {
	s := &Server{cat: cat, log: log}
	for _, label := range cat.Labels() {
		d, _ := cat.ByLabel(label)
		switch d.Kind {
		case catalog.KindText:
			if s.text == nil {
				s.text = adapter.NewTextAdapter(factory, d.ModelID, device, log)
			}
		case catalog.KindImage:
			if s.cap == nil {
				s.cap = adapter.NewCaptionAdapter(factory, d.ModelID, device, log)
			}
		}
	}
	return s
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(MetricsMiddleware)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/generate", s.handleGenerate)
		r.Post("/caption", s.handleCaption)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	var resp types.ModelsResponse
	for _, label := range s.cat.Labels() {
		d, _ := s.cat.ByLabel(label)
		resp.Models = append(resp.Models, types.ModelInfo{
			Label: d.Label,
			Kind:  string(d.Kind),
			Model: d.ModelID,
			Brief: s.cat.Brief(d.ModelID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.text == nil {
		writeError(w, http.StatusServiceUnavailable, "no text model configured")
		return
	}
	var req types.GenerateRequest
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var opts []adapter.TextOption
	if req.MaxNewTokens > 0 {
		opts = append(opts, adapter.WithMaxNewTokens(req.MaxNewTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, adapter.WithTemperature(req.Temperature))
	}
	if req.Greedy {
		opts = append(opts, adapter.WithSampling(false))
	}
	start := time.Now()
	recs, err := s.text.Run(r.Context(), req.Prompt, opts...)
	observePipeline("text", start, err)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{
		Text:           pipeline.DisplayText(recs),
		Model:          s.text.ModelID,
		ElapsedSeconds: time.Since(start).Seconds(),
	})
}

func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	if s.cap == nil {
		writeError(w, http.StatusServiceUnavailable, "no image model configured")
		return
	}
	img, err := readImageBody(w, r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	recs, err := s.cap.RunBytes(r.Context(), img)
	observePipeline("image", start, err)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{
		Text:           pipeline.DisplayText(recs),
		Model:          s.cap.ModelID,
		ElapsedSeconds: time.Since(start).Seconds(),
	})
}

// readImageBody returns the uploaded image bytes: the first file part of a
// multipart form, or the raw request body.
func readImageBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mt, "multipart/") {
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body")
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("invalid multipart body")
			}
			if part.FileName() == "" {
				continue
			}
			return io.ReadAll(io.LimitReader(part, maxImageBody))
		}
		return nil, fmt.Errorf("multipart body has no file part")
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBody))
}

// statusFor maps adapter and pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case adapter.IsInvalidInput(err), adapter.IsFileNotFound(err):
		return http.StatusBadRequest
	case pipeline.IsPipelineError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg, Code: code})
}
