package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upsertsChanged = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "registry_upserts_changed_total",
	Help: "Total number of registry upserts that inserted or improved an entry",
}, []string{"role"})

var persistSkips = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "registry_persist_skips_total",
	Help: "Total number of registry persistence attempts skipped due to storage failure",
}, []string{"role"})
