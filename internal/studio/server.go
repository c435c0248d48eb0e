package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/generation"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
	"github.com/joelkehle/formulation-studio/internal/report"
	"github.com/joelkehle/formulation-studio/internal/store"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

const maxBodyBytes = 1 << 20

type Server struct {
	svc         *Service
	pdfRenderer report.PDFRenderer
	metrics     *telemetry.Metrics
	meter       *telemetry.Meter
	log         logger.Logger
}

type ServerOption func(*Server)

// WithPDFRenderer enables the PDF report route. Without it the route
// answers 503.
func WithPDFRenderer(r report.PDFRenderer) ServerOption {
	return func(s *Server) { s.pdfRenderer = r }
}

func WithMetrics(m *telemetry.Metrics, meter *telemetry.Meter) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.meter = meter
	}
}

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

func NewServer(svc *Service, opts ...ServerOption) http.Handler {
	s := &Server{svc: svc, log: logger.NewNoOpLogger()}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/formulations", s.handleFormulations)
	mux.HandleFunc("/api/formulations/", s.handleFormulation)
	mux.HandleFunc("/api/insights/priorities", s.handlePriorities)
	mux.HandleFunc("/api/insights/market-size", s.handleMarketSize)
	mux.HandleFunc("/api/insights/segments", s.handleSegments)
	return s.instrument(mux)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.meter.RecordRequest(r.Context(), routeLabel(r.URL.Path), rec.status, time.Since(start))
	})
}

// routeLabel folds submission ids out of the path to keep label cardinality
// bounded.
func routeLabel(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/formulations/")
	if !ok || rest == "" {
		return path
	}
	if _, sub, found := strings.Cut(rest, "/"); found {
		return "/api/formulations/{id}/" + sub
	}
	return "/api/formulations/{id}"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.svc.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type categoryView struct {
	Category    string                          `json:"category"`
	Multiplier  float64                         `json:"multiplier"`
	Penetration marketanalysis.PenetrationRange `json:"penetration"`
	Theme       marketanalysis.CategoryTheme    `json:"theme"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tables := s.svc.deriver.Calculator.Tables()
	out := make([]categoryView, 0, len(tables.Categories))
	for _, name := range tables.CategoryNames() {
		p, _ := tables.ProfileForCategory(name)
		out = append(out, categoryView{
			Category:    name,
			Multiplier:  p.Multiplier,
			Penetration: p.Penetration,
			Theme:       marketanalysis.ThemeFor(name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out, "cities": tables.CityNames()})
}

type submitRequest struct {
	Prompt   string `json:"prompt"`
	Category string `json:"category"`
	Location string `json:"location"`
	City     string `json:"city"`
}

func (s *Server) handleFormulations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := s.svc.Submit(r.Context(), store.NewSubmission{
		Prompt:   req.Prompt,
		Category: req.Category,
		Location: req.Location,
		City:     req.City,
	})
	if err != nil {
		if errors.Is(err, generation.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.WithError(err).Error("submit failed", nil)
		writeError(w, http.StatusInternalServerError, "failed to record submission")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": sub.ID, "status": sub.Status})
}

func decodeSubmit(w http.ResponseWriter, r *http.Request) (submitRequest, error) {
	var req submitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return submitRequest{}, errors.New("invalid JSON body")
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return submitRequest{}, errors.New("invalid multipart form")
		}
		req = submitFromForm(r)
	default:
		if err := r.ParseForm(); err != nil {
			return submitRequest{}, errors.New("invalid form body")
		}
		req = submitFromForm(r)
	}
	return req, nil
}

func submitFromForm(r *http.Request) submitRequest {
	return submitRequest{
		Prompt:   r.FormValue("prompt"),
		Category: r.FormValue("category"),
		Location: r.FormValue("location"),
		City:     r.FormValue("city"),
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	subs, err := s.svc.List(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("list submissions", nil)
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// handleFormulation serves /api/formulations/{id}, /{id}/report and
// /{id}/report.pdf.
func (s *Server) handleFormulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/formulations/"), "/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "submission id is required")
		return
	}
	switch sub {
	case "":
		s.handleGet(w, r, id)
	case "report":
		s.handleReport(w, r, id)
	case "report.pdf":
		s.handleReportPDF(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	sub, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) document(w http.ResponseWriter, r *http.Request, id string) (report.Document, bool) {
	doc, err := s.svc.Document(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, err)
		return report.Document{}, false
	}
	return doc, true
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "submission not found")
	case errors.Is(err, ErrNotReady):
		writeError(w, http.StatusNotFound, "report not ready")
	default:
		s.log.WithError(err).Error("load submission", nil)
		writeError(w, http.StatusInternalServerError, "failed to load submission")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id string) {
	doc, ok := s.document(w, r, id)
	if !ok {
		return
	}
	md := report.BuildMarkdown(doc)
	if r.URL.Query().Get("format") != "html" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, md)
		return
	}
	page, err := report.RenderHTML(doc.Title(), md, doc.Insights.Theme)
	if err != nil {
		s.log.WithError(err).Error("render report html", map[string]interface{}{"id": id})
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, page)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request, id string) {
	if s.pdfRenderer == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	doc, ok := s.document(w, r, id)
	if !ok {
		return
	}
	page, err := report.RenderHTML(doc.Title(), report.BuildMarkdown(doc), doc.Insights.Theme)
	if err != nil {
		s.log.WithError(err).Error("render report html", map[string]interface{}{"id": id})
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	pdf, err := s.pdfRenderer.Render(r.Context(), page)
	if err != nil {
		if errors.Is(err, report.ErrPDFUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
			return
		}
		s.log.WithError(err).Error("render report pdf", map[string]interface{}{"id": id})
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(doc.Title())+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func sanitizeFilename(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return body, true
}

// observationFrom reads the optional "observation" member. Absent or null
// yields nil so the calculators fall back to their defaults.
func observationFrom(body []byte) (*marketanalysis.LocalMarketObservation, error) {
	raw := gjson.GetBytes(body, "observation")
	if !raw.Exists() || raw.Type == gjson.Null {
		return nil, nil
	}
	obs, err := formulation.DecodeObservation([]byte(raw.Raw))
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

func (s *Server) handlePriorities(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	f, err := formulation.DecodeFormulation(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d := s.svc.deriver
	scores := d.Scorer.Score(f.Ingredients)
	s.svc.metrics.InsightComputed("priorities")
	writeJSON(w, http.StatusOK, map[string]any{
		"priorities": scores,
		"radar":      formulation.RadarPoints(scores, d.RadarRadius),
	})
}

func (s *Server) handleMarketSize(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	obs, err := observationFrom(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	city := gjson.GetBytes(body, "city").String()
	category := gjson.GetBytes(body, "category").String()
	estimate := s.svc.deriver.Calculator.MarketSizes(obs, city, category)
	s.svc.metrics.InsightComputed("market_size")
	writeJSON(w, http.StatusOK, map[string]any{
		"marketSize":   estimate,
		"projection":   marketanalysis.ProjectRevenue(estimate, marketanalysis.DefaultProjectionYears),
		"theme":        marketanalysis.ThemeFor(category),
		"illustrative": obs == nil,
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	obs, err := observationFrom(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	segs := s.svc.deriver.Calculator.Segments(obs)
	s.svc.metrics.InsightComputed("segments")
	writeJSON(w, http.StatusOK, map[string]any{
		"segments":        segs,
		"totalPurchasers": segs.TotalPurchasers(),
		"totalRevenue":    segs.TotalRevenue(),
		"illustrative":    obs == nil,
	})
}
