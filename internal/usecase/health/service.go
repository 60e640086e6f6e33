package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the embedding provider is down: reads work, ingest and search do not.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker) *Service {
	return &Service{db: db, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	// Without the database nothing works; without embeddings reads still do.
	status := Healthy
	switch {
	case checks["database"] == CheckError:
		status = Unhealthy
	case checks["embedding"] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
