// Package workload turns user-submitted job descriptions into patched,
// namespaced Kubernetes batch resources ready for submission.
//
// The flow for one submission is: parse the free-form body into a typed
// Job or CronJob (ParseJob, ParseCronJob), optionally merging the
// administrator's job template first, then rewrite it with Patch so the
// user's namespace, identity, environment secrets, and code bundle are
// woven in.
package workload

import (
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Kind identifies which batch resource a submission targets.
type Kind string

const (
	KindJob     Kind = "Job"
	KindCronJob Kind = "CronJob"
)

// Workload is a tagged variant of the two batch resources the proxy accepts.
// Exactly one of Job or CronJob is non-nil, matching Kind.
type Workload struct {
	Kind    Kind
	Job     *batchv1.Job
	CronJob *batchv1.CronJob
}

// Target returns the metadata and job spec that patch operations apply to.
// For a CronJob that is the embedded job template; for a Job, the job itself.
func (w *Workload) Target() (*metav1.ObjectMeta, *batchv1.JobSpec) {
	if w.Kind == KindCronJob {
		return &w.CronJob.Spec.JobTemplate.ObjectMeta, &w.CronJob.Spec.JobTemplate.Spec
	}
	return &w.Job.ObjectMeta, &w.Job.Spec
}

// MalformedError reports a submission body that cannot be interpreted as a
// workload. The HTTP layer maps it to 400.
type MalformedError struct {
	msg string
}

func (e *MalformedError) Error() string { return e.msg }

func malformedf(format string, args ...any) error {
	return &MalformedError{msg: fmt.Sprintf(format, args...)}
}

// validate enforces the submission invariants: the patch target names itself
// (name or generateName) and declares at least one container with an image.
func (w *Workload) validate() error {
	if w.Kind == KindCronJob {
		outer := w.CronJob.ObjectMeta
		if outer.Name == "" && outer.GenerateName == "" {
			return malformedf("cronjob metadata requires name or generateName")
		}
	}
	meta, spec := w.Target()
	if meta.Name == "" && meta.GenerateName == "" {
		return malformedf("job metadata requires name or generateName")
	}
	containers := spec.Template.Spec.Containers
	if len(containers) == 0 {
		return malformedf("job spec requires at least one container")
	}
	if containers[0].Image == "" {
		return malformedf("container %q requires an image", containers[0].Name)
	}
	return nil
}
