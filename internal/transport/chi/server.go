package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/transport/payload"
	collectionuc "github.com/kailas-cloud/vecdesk/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/vecdesk/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/vecdesk/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/vecdesk/internal/usecase/query"
)

// bulkFormField is the multipart field carrying an uploaded JSON file.
const bulkFormField = "file"

// Server serves the record collection HTTP API.
type Server struct {
	collections   *collectionuc.Service
	ingest        *ingestuc.Service
	query         *queryuc.Service
	health        *healthuc.Service
	defaultTopK   int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	collections *collectionuc.Service,
	ingest *ingestuc.Service,
	query *queryuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		collections:   collections,
		ingest:        ingest,
		query:         query,
		health:        health,
		defaultTopK:   queryuc.DefaultTopK,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithDefaultTopK sets the result count used when a search omits top_k.
func (s *Server) WithDefaultTopK(n int) *Server {
	if n > 0 {
		s.defaultTopK = n
	}
	return s
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1/collections", func(r chi.Router) {
		r.Get("/", s.ListCollections)
		r.Post("/", s.CreateCollection)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.GetCollection)
			r.Delete("/", s.DropCollection)
			r.Post("/records", s.InsertRecord)
			r.Post("/records/bulk", s.InsertBulk)
			r.Get("/records", s.FetchRecords)
			r.Get("/records/{id}", s.GetRecord)
			r.Post("/search", s.Search)
		})
	})
}

// CreateCollection handles POST /api/v1/collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	schema, err := payload.SchemaFrom(req.Fields, req.TextField, req.Strict)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	col, err := s.collections.Create(r.Context(), req.Name, schema)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, payload.CollectionFrom(col))
}

// ListCollections handles GET /api/v1/collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]payload.Collection, 0, len(cols))
	for _, c := range cols {
		items = append(items, payload.CollectionFrom(c))
	}
	writeJSON(w, http.StatusOK, CollectionList{Items: items})
}

// GetCollection handles GET /api/v1/collections/{collection}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	col, err := s.collections.Get(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	n, err := s.collections.Count(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := payload.CollectionFrom(col)
	resp.RecordCount = &n
	writeJSON(w, http.StatusOK, resp)
}

// DropCollection handles DELETE /api/v1/collections/{collection}.
func (s *Server) DropCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.collections.Drop(r.Context(), chi.URLParam(r, "collection")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertRecord handles POST /api/v1/collections/{collection}/records.
func (s *Server) InsertRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.handleBodyError(w, r, err)
		return
	}

	in, err := payload.DecodeOne(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	id, err := s.ingest.InsertOne(r.Context(), chi.URLParam(r, "collection"), in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, InsertResponse{ID: id})
}

// InsertBulk handles POST /api/v1/collections/{collection}/records/bulk.
// The body is a JSON array (or a single object), or a multipart form with the
// JSON document in the "file" field. Responds 200 when every record was stored
// and 207 when some failed.
func (s *Server) InsertBulk(w http.ResponseWriter, r *http.Request) {
	body, err := readBulkBody(r)
	if err != nil {
		s.handleBodyError(w, r, err)
		return
	}

	inputs, err := payload.DecodeMany(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.ingest.InsertBulk(r.Context(), chi.URLParam(r, "collection"), inputs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, bulkToDTO(res))
}

// FetchRecords handles GET /api/v1/collections/{collection}/records.
func (s *Server) FetchRecords(w http.ResponseWriter, r *http.Request) {
	var (
		orderBy       string
		limit, offset int
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "order_by", query, &orderBy); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid order_by: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid limit: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &offset); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid offset: "+err.Error())
		return
	}

	recs, err := s.collections.FetchOrdered(r.Context(), chi.URLParam(r, "collection"), orderBy, limit, offset)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if limit == 0 {
		limit = s.collections.DefaultPageSize()
	}
	writeJSON(w, http.StatusOK, RecordList{Items: payload.Records(recs, false), Limit: limit, Offset: offset})
}

// GetRecord handles GET /api/v1/collections/{collection}/records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	var withVector bool
	if err := runtime.BindQueryParameter("form", true, false, "with_vector", r.URL.Query(), &withVector); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid with_vector: "+err.Error())
		return
	}

	rec, err := s.collections.GetRecord(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payload.ToMap(rec, withVector))
}

// Search handles POST /api/v1/collections/{collection}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.TopK == 0 {
		req.TopK = s.defaultTopK
	}

	hits, err := s.query.Search(r.Context(), chi.URLParam(r, "collection"), req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Hits: payload.HitsFrom(hits)})
}

// HealthCheck handles GET /health.
// A degraded embedding service still answers 200; a database failure answers 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.handleBodyError(w, r, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// handleBodyError reports unreadable bodies: 413 past the size limit, 400 otherwise.
func (s *Server) handleBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if payloadTooLargeHandler(w, err) {
		return
	}
	writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
}

func readBulkBody(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body) //nolint:wrapcheck // classified by handleBodyError
	}

	file, _, err := r.FormFile(bulkFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("multipart field %q is required", bulkFormField)
		}
		return nil, fmt.Errorf("read multipart form: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", bulkFormField, err)
	}
	return data, nil
}
