// Package server exposes the chat orchestrator and calendar dispatcher over
// JSON/HTTP using echo.
//
// The API server carries the conversational surface (POST /chat), the direct
// calendar action endpoints (POST /calendar/*), a credentials diagnostic
// (GET /debug/calendar), and Kubernetes-style health probes. Prometheus
// metrics are served by a separate MetricsServer on a dedicated port so
// operational data never shares a listener with user traffic.
package server
