/*
Package metrics provides Prometheus metrics and component liveness tracking
for Burrow.

All collectors are package-level variables registered at init time and
labelled by cache (or dispatch service) name, so that several cache
instances in one process stay distinguishable:

	metrics.StorageReadsTotal.WithLabelValues("sessions", "initial", "success").Inc()

	timer := metrics.NewTimer()
	// ... perform storage write ...
	timer.ObserveDurationVec(metrics.StorageWriteDuration, "sessions")

The LivenessRegistry tracks the long-running pieces of a pipeline (queue
workers and goroutine pools). Each cache owns a registry; status snapshots
read from it and the /healthz endpoint serves it:

	reg := metrics.NewLivenessRegistry()
	reg.Report("main-queue", true, "")
	http.Handle("/healthz", reg.Handler())
	http.Handle("/metrics", metrics.Handler())

The in-process monitoring counters kept by the writebehind package remain
the authoritative numbers for status snapshots; the Prometheus collectors
mirror them for scraping.
*/
package metrics
