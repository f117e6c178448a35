// Package health aggregates component availability checks.
package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
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

// Service coordinates health checks across the store and every external
// retrieval/LLM provider.
type Service struct {
	db       DBPinger
	checkers map[string]Checker
}

// New creates a Service. Nil checkers are skipped, so partially wired
// deployments (e.g. no keyword provider configured) still report health.
func New(db DBPinger, checkers map[string]Checker) *Service {
	return &Service{db: db, checkers: checkers}
}

// Check runs all component checks concurrently and aggregates the outcome.
// Every check failing means Unhealthy; any subset failing means Degraded.
func (s *Service) Check(ctx context.Context) Report {
	var mu sync.Mutex
	checks := make(map[string]CheckResult)
	var wg sync.WaitGroup

	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
		} else {
			checks[name] = CheckOK
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		record("database", s.db.Ping(ctx))
	}()

	for name, c := range s.checkers {
		if c == nil {
			continue
		}
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			record(name, c.HealthCheck(ctx))
		}(name, c)
	}

	wg.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks) && failed > 0:
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
