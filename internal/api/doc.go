// Package api hosts the HTTP server, middleware, and handlers for on-demand
// harvests. Notable routes:
//   - GET / lists the available sites and the run endpoint shape.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /{site}?date=dd/mm/yyyy&format=json|csv&filter=text runs one
//     site synchronously and returns its records.
package api
