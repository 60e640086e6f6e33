package chi

import (
	dombatch "github.com/kailas-cloud/vecdesk/internal/domain/batch"
	"github.com/kailas-cloud/vecdesk/internal/transport/payload"
)

// ErrorCode is a machine-readable error identifier returned in error bodies.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeEmptyInput         ErrorCode = "empty_input"
	ErrorCodeSchemaMismatch     ErrorCode = "schema_mismatch"
	ErrorCodeCollectionNotFound ErrorCode = "collection_not_found"
	ErrorCodeRecordNotFound     ErrorCode = "record_not_found"
	ErrorCodeCollectionExists   ErrorCode = "collection_already_exists"
	ErrorCodeEmbeddingError     ErrorCode = "embedding_error"
	ErrorCodePayloadTooLarge    ErrorCode = "payload_too_large"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeCanceled           ErrorCode = "canceled"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CreateCollectionRequest is the body of POST /api/v1/collections.
type CreateCollectionRequest struct {
	Name      string                    `json:"name"`
	TextField string                    `json:"text_field,omitempty"`
	Strict    bool                      `json:"strict,omitempty"`
	Fields    []payload.FieldDefinition `json:"fields,omitempty"`
}

// CollectionList is the body of GET /api/v1/collections.
type CollectionList struct {
	Items []payload.Collection `json:"items"`
}

// InsertResponse is the body of a single-record insert.
type InsertResponse struct {
	ID string `json:"id"`
}

// BulkItem reports the outcome of one bulk input.
type BulkItem struct {
	Index   int       `json:"index"`
	ID      string    `json:"id,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// BulkResponse is the body of POST .../records/bulk.
type BulkResponse struct {
	Total     int        `json:"total"`
	Succeeded []BulkItem `json:"succeeded"`
	Failed    []BulkItem `json:"failed"`
}

// RecordList is the body of an ordered fetch.
type RecordList struct {
	Items  []map[string]any `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// SearchRequest is the body of POST .../search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResponse is the body of a similarity search.
type SearchResponse struct {
	Hits []payload.SearchHit `json:"hits"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func bulkToDTO(res dombatch.Result) BulkResponse {
	out := BulkResponse{
		Total:     res.Total,
		Succeeded: make([]BulkItem, 0, len(res.Succeeded)),
		Failed:    make([]BulkItem, 0, len(res.Failed)),
	}
	for _, it := range res.Succeeded {
		out.Succeeded = append(out.Succeeded, BulkItem{Index: it.Index(), ID: it.ID()})
	}
	for _, it := range res.Failed {
		code, _ := classify(it.Err())
		out.Failed = append(out.Failed, BulkItem{
			Index:   it.Index(),
			ID:      it.ID(),
			Code:    code,
			Message: itemMessage(it.Err()),
		})
	}
	return out
}
