package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_records_read_total",
		Help: "Records returned by group reads",
	}, []string{"stream"})
	recordsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_records_claimed_total",
		Help: "Stale pending records claimed back for another dispatch attempt",
	}, []string{"stream"})
	recordsAcked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_records_acked_total",
		Help: "Records acknowledged after a successful dispatch",
	}, []string{"stream"})
	dispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_dispatch_errors_total",
		Help: "Workflow starts rejected by the engine; records stay pending",
	}, []string{"stream"})
	decodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_decode_failures_total",
		Help: "Records that failed decoding or structural validation",
	}, []string{"stream"})
	groupRecreations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_group_recreations_total",
		Help: "Times a missing consumer group was re-created mid-loop",
	})
	readErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_read_errors_total",
		Help: "Group reads that failed for reasons other than a missing group",
	})
)
