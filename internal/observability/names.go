// Package observability provides OpenTelemetry metrics and log correlation
// for the sembench API and experiment runner.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameTrialsIssued         = "sembench_trials_issued_total"
	MetricNameTrialsInvalid        = "sembench_trials_invalid_total"
	MetricNameTrialRetries         = "sembench_trial_retries_total"
	MetricNameGenerationDuration   = "sembench_generation_duration_seconds"
	MetricNameEmbeddingLookups     = "sembench_embedding_lookups_total"
	MetricNameEmbeddingCacheHits   = "sembench_embedding_cache_hits_total"
	MetricNameEmbeddingErrors      = "sembench_embedding_errors_total"
	MetricNameEmbeddingDuration    = "sembench_embedding_duration_seconds"
	MetricNameScoreRequests        = "sembench_score_requests_total"
	MetricNameScoreRequestDuration = "sembench_score_request_duration_seconds"
	MetricNameHTTPRequests         = "sembench_http_requests_total"
	MetricNameHTTPRequestDuration  = "sembench_http_request_duration_seconds"
)

// Attribute keys.
const (
	AttrCondition = "condition"
	AttrReason    = "reason"
	AttrStatus    = "status"
	AttrSpace     = "space"
	AttrMetric    = "metric"
	AttrMethod    = "method"
	AttrRoute     = "route"
	AttrClass     = "status_class"
)

// AllowedInvalidReasons bounds the cardinality of the invalid-trial counter.
var AllowedInvalidReasons = map[string]bool{
	"validation":   true,
	"collaborator": true,
	"scoring":      true,
}
