package guard

import "time"

// Metrics provides observability for authorization decisions.
//
// Implementations collect denial counts, rule-source latency and cache
// invalidation counts. This is optional - if not provided, metrics
// collection is skipped.
type Metrics interface {
	// RecordDenial counts an authorization denial for the named operation.
	RecordDenial(operation string)

	// ObserveRuleResolution records one round trip to the rule source.
	ObserveRuleResolution(duration time.Duration)

	// RecordInvalidation counts a cache invalidation after a mutation.
	RecordInvalidation()
}
