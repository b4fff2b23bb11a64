// Package k8s provides the Kubernetes client used by the proxy to manage
// per-user batch resources.
//
// The package exposes a narrow, typed surface instead of a general-purpose
// resource layer: user namespaces, the Secret/ConfigMap pair that accompanies
// every submission, Jobs and CronJobs, and pod log access. All operations are
// scoped to a single namespace argument; the caller derives that namespace
// from the authenticated user and nothing here ever widens it.
//
// Client is the interface consumed by the submission pipeline and the HTTP
// handlers; NewClient builds the production implementation from in-cluster
// service account credentials or a kubeconfig.
package k8s
