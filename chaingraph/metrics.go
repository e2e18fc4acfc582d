package chaingraph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upserts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chaingraph_upserts_total",
	Help: "Total number of node upserts that changed the graph",
})

var noopUpserts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chaingraph_noop_upserts_total",
	Help: "Total number of upserts skipped as identical to the stored node",
})

var evictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chaingraph_evictions_total",
	Help: "Total number of nodes evicted past the size bound",
})

var notifications = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chaingraph_notifications_total",
	Help: "Total number of coalesced change notifications delivered",
})
