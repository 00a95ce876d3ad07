// Package http implements the HTTP and websocket surface of the review
// service. Handlers stay thin: they parse and validate input, call the review
// service and render the result.
//
// # Routes
//
//	GET    /                                  HTML dashboard
//	GET    /assets/*                          dashboard stylesheet and script
//	GET    /ws                                live view websocket
//	GET    /api/domain                        filter domain
//	GET    /api/filters                       session filter state
//	PUT    /api/filters                       replace session filter state
//	DELETE /api/filters                       reset to the domain defaults
//	GET    /api/companies                     filtered company table
//	GET    /api/companies/export              CSV or XLSX download
//	GET    /api/companies/{symbol}/trials     trials of one company
//	GET    /api/selection?label=              trials of a selector label
//	POST   /api/logs                          dashboard error reports
//	GET    /api/health[/live|/ready]          health checks
//	GET    /api/version                       build information
//	GET    /api/stats                         cache and websocket counters
//
// # Sessions
//
// Every dashboard, API and websocket request carries the review_session
// cookie. Filter state is stored per session; query parameters on
// /api/companies and the export override it for one request only.
//
// # Error Handling
//
// API failures are RFC 7807 problem documents written by
// internal/errors.ErrorHandler. A missing summary source is 503
// SUMMARY_UNAVAILABLE, missing filter columns are 500 SCHEMA_MISMATCH and bad
// filter input is 400 VALIDATION_FAILED. The dashboard renders the same
// failures as a notice page with the matching status.
//
// # Live View
//
// The browser sends {"type": "filters" | "reset" | "select" | "refresh",
// "data": {...}} and receives view, filters, trials or error messages.
// Messages of one connection are handled in order on its read goroutine.
package http
