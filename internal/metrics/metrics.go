package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels shared by the counters below.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultUnavailable = "unavailable"
	ResultQuota       = "quota_exceeded"
	ResultMalformed   = "malformed"
	ResultMiss        = "miss"
	ResultRetry       = "retry"
	ResultExhausted   = "exhausted"
)

var (
	// storageOps counts persistence gateway operations by operation and outcome.
	storageOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookbook_storage_operations_total",
		Help: "Persistence gateway operations by operation and result",
	}, []string{"op", "result"})

	// fetchAttempts counts attempts against the external recipe source.
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookbook_recipe_source_fetch_attempts_total",
		Help: "External recipe source fetch attempts by result",
	}, []string{"result"})

	// mutations counts logical entity mutations.
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookbook_entity_mutations_total",
		Help: "Entity mutations by entity and operation",
	}, []string{"entity", "op"})
)

// RecordStorage records the outcome of a gateway read, write or delete.
func RecordStorage(op, result string) {
	storageOps.WithLabelValues(op, result).Inc()
}

// RecordFetch records the outcome of a single fetch attempt.
func RecordFetch(result string) {
	fetchAttempts.WithLabelValues(result).Inc()
}

// RecordMutation records a logical mutation of an entity collection.
func RecordMutation(entity, op string) {
	mutations.WithLabelValues(entity, op).Inc()
}
