/*
Package observability exposes Prometheus metrics for the Parley engine.

Metrics are fed by the engine's lifecycle hooks: register the collectors,
then pass Metrics.Hooks to parley.WithLifecycleHooks. Cache counters are
read on scrape through CacheCollector.
*/
package observability
