package circuitbreaker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "em_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by outcome",
		},
		[]string{"name", "outcome"},
	)
)

// HTTPWrapper wraps an http.Client with a circuit breaker.
type HTTPWrapper struct {
	client *http.Client
	cb     *Breaker
	name   string
	logger *zap.Logger
}

// NewHTTPWrapper creates an HTTP wrapper around client for the named
// collaborator.
func NewHTTPWrapper(client *http.Client, name string, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPWrapper{
		client: client,
		cb:     New(name, DefaultConfig(), logger),
		name:   name,
		logger: logger,
	}
}

// Do executes an HTTP request through the breaker. 5xx responses count as
// breaker failures but are still returned to the caller; 4xx do not trip it.
func (hw *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := hw.cb.Execute(func() error {
		var callErr error
		resp, callErr = hw.client.Do(req)
		if callErr != nil {
			return callErr
		}
		if resp.StatusCode >= 500 {
			return &httpStatusError{code: resp.StatusCode}
		}
		return nil
	})

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	breakerRequests.WithLabelValues(hw.name, outcome).Inc()

	if _, ok := err.(*httpStatusError); ok {
		return resp, nil
	}
	return resp, err
}

// httpStatusError marks 5xx responses for breaker accounting.
type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return http.StatusText(e.code) }
