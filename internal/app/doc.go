// Package app wires the review server together and manages its lifecycle.
//
// NewApplication loads configuration, initializes logging and telemetry and
// then calls New, which builds the dataset cache, session store, review and
// health services, the websocket hub and the source watcher, and registers
// the routes:
//
//	/ws            live view (websocket, outside the request timeout)
//	/              server-rendered dashboard
//	/assets/*      dashboard stylesheet and script
//	/api/...       JSON API, health checks, client logs and stats
//	/metrics       Prometheus exposition when the exporter is enabled
//
// When the watcher sees a data source change, the cached copy is dropped and
// connected live clients are told to refresh.
//
// Run blocks until SIGINT or SIGTERM and then shuts the server, watcher, hub
// and telemetry down in that order. Errors are returned to the caller; the
// package never calls os.Exit.
package app
