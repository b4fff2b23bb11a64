// Package submit turns one patched workload into a linked set of cluster
// resources.
//
// A submission creates, in order: the user's namespace (idempotently), the
// env Secret, the optional code ConfigMap, and finally the Job or CronJob.
// Later phases depend on server-assigned names from earlier ones, so the
// sequence is strictly serial. If a phase fails, the resources created by
// earlier phases are deleted best-effort before the error is returned;
// after the owner exists, its identity is back-patched onto the Secret and
// ConfigMap so cluster garbage collection removes them with the workload.
package submit
