// Package server exposes the kbatch API over HTTP.
//
// The surface mirrors what notebook-side kbatch clients expect:
//
//   - POST /jobs/ and /cronjobs/ run the submission pipeline
//   - GET /jobs/, /cronjobs/, /pods/ read back the user's resources
//   - GET /jobs/logs/{name}/ and /pods/logs/{name}/ relay container logs,
//     optionally streamed with ?stream=true
//   - GET /profiles/ serves the admin-defined submission presets
//   - GET /authorized reports the caller's identity
//
// Every data route authenticates the caller against JupyterHub and scopes all
// cluster access to the caller's own namespace; the handlers never accept a
// namespace from the client. Errors are returned as {"status": code,
// "detail": message} with Kubernetes API messages relayed verbatim.
//
// The whole API can be mounted under a path prefix for deployments that
// share a hostname with other Hub services. Liveness and readiness probes
// live at /healthz and /readyz on the main listener; Prometheus metrics get
// a dedicated MetricsServer.
package server
