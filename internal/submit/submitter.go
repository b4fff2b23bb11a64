package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
	"github.com/kbatch-dev/kbatch-proxy/internal/k8s"
	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// compensationTimeout bounds each cleanup delete after a failed phase. The
// deletes run on a context detached from the request, so a client disconnect
// cannot leave half a submission behind.
const compensationTimeout = 5 * time.Second

// Submitter creates the cluster resources for one submission.
type Submitter struct {
	client          k8s.Client
	metrics         *instrumentation.Metrics
	logger          *slog.Logger
	createNamespace bool
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// WithNamespaceCreation controls whether submissions create the user
// namespace on demand. When disabled the namespace must be provisioned out
// of band and a submission into a missing namespace fails at the Secret
// phase.
func WithNamespaceCreation(enabled bool) Option {
	return func(s *Submitter) { s.createNamespace = enabled }
}

// New creates a Submitter backed by the given cluster client. Namespace
// creation is on unless WithNamespaceCreation turns it off.
func New(client k8s.Client, opts ...Option) *Submitter {
	s := &Submitter{
		client:          client,
		logger:          slog.Default(),
		createNamespace: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request carries the patched pieces of one submission.
type Request struct {
	// Workload is the patched Job or CronJob.
	Workload *workload.Workload
	// Secret is the env Secret produced by patching. Required.
	Secret *corev1.Secret
	// ConfigMap is the code bundle, nil when the submission had no code.
	ConfigMap *corev1.ConfigMap
	// Namespace is the user's namespace; every resource lands there.
	Namespace string
	// Username is carried for logging only.
	Username string
}

// Result reports what a successful submission created.
type Result struct {
	Kind      workload.Kind
	Name      string
	Namespace string

	// Job or CronJob is the server's copy of the created workload,
	// matching Kind.
	Job     *batchv1.Job
	CronJob *batchv1.CronJob

	// Secret and ConfigMap are the server's copies of the children.
	Secret    *corev1.Secret
	ConfigMap *corev1.ConfigMap

	// NamespaceStatus says whether the namespace was created on this
	// submission or already existed.
	NamespaceStatus k8s.NamespaceStatus
}

// Submit runs the submission phases in order: ensure namespace, create
// Secret, create ConfigMap (when code was supplied), create the workload,
// back-patch ownership. On a phase failure the resources created so far are
// deleted best-effort and the phase's error is returned. An ownership patch
// failure is logged but does not fail the submission; the workload exists
// and the children at worst outlive it.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Result, error) {
	ctx, span := instrumentation.StartSpan(ctx, "submit",
		instrumentation.SubmissionAttributes(string(req.Workload.Kind), req.Namespace)...)
	defer span.End()

	logger := s.logger.With(
		logging.Username(req.Username),
		logging.Namespace(req.Namespace),
		logging.Kind(string(req.Workload.Kind)),
	)
	start := time.Now()

	result, err := s.submit(ctx, req, logger)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		s.recordSubmission(ctx, req.Workload.Kind, instrumentation.StatusError, time.Since(start))
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	s.recordSubmission(ctx, req.Workload.Kind, instrumentation.StatusSuccess, time.Since(start))
	logger.Info("submission complete",
		logging.ResourceName(result.Name),
		logging.Duration(time.Since(start)))
	return result, nil
}

func (s *Submitter) submit(ctx context.Context, req Request, logger *slog.Logger) (*Result, error) {
	result := &Result{
		Kind:      req.Workload.Kind,
		Namespace: req.Namespace,
	}

	if s.createNamespace {
		nsStatus, err := s.ensureNamespace(ctx, req.Namespace)
		if err != nil {
			return nil, err
		}
		result.NamespaceStatus = nsStatus
	} else {
		result.NamespaceStatus = k8s.NamespaceSkipped
	}

	_, spec := req.Workload.Target()

	secret, err := s.createSecret(ctx, req.Namespace, req.Secret)
	if err != nil {
		return nil, err
	}
	result.Secret = secret
	workload.SetEnvSecretName(spec, secret)

	if req.ConfigMap != nil {
		configMap, err := s.createConfigMap(ctx, req.Namespace, req.ConfigMap)
		if err != nil {
			s.compensate(ctx, req.Namespace, logger, secret, nil)
			return nil, err
		}
		result.ConfigMap = configMap
		if err := workload.SetCodeConfigMapName(spec, configMap); err != nil {
			s.compensate(ctx, req.Namespace, logger, secret, configMap)
			return nil, err
		}
	}

	name, err := s.createWorkload(ctx, req.Namespace, req.Workload, result)
	if err != nil {
		s.compensate(ctx, req.Namespace, logger, secret, result.ConfigMap)
		return nil, err
	}
	result.Name = name

	s.patchOwnership(ctx, req.Namespace, logger, result)
	return result, nil
}

func (s *Submitter) ensureNamespace(ctx context.Context, namespace string) (k8s.NamespaceStatus, error) {
	opCtx, done := s.startOperation(ctx, instrumentation.OperationCreate, k8s.ResourceNamespace, namespace)
	status, err := s.client.EnsureNamespace(opCtx, namespace)
	done(err)
	if err != nil {
		return "", fmt.Errorf("failed to ensure namespace: %w", err)
	}
	return status, nil
}

func (s *Submitter) createSecret(ctx context.Context, namespace string, secret *corev1.Secret) (*corev1.Secret, error) {
	opCtx, done := s.startOperation(ctx, instrumentation.OperationCreate, k8s.ResourceSecret, namespace)
	created, err := s.client.CreateSecret(opCtx, namespace, secret)
	done(err)
	return created, err
}

func (s *Submitter) createConfigMap(ctx context.Context, namespace string, configMap *corev1.ConfigMap) (*corev1.ConfigMap, error) {
	opCtx, done := s.startOperation(ctx, instrumentation.OperationCreate, k8s.ResourceConfigMap, namespace)
	created, err := s.client.CreateConfigMap(opCtx, namespace, configMap)
	done(err)
	return created, err
}

func (s *Submitter) createWorkload(ctx context.Context, namespace string, w *workload.Workload, result *Result) (string, error) {
	switch w.Kind {
	case workload.KindCronJob:
		opCtx, done := s.startOperation(ctx, instrumentation.OperationCreate, k8s.ResourceCronJob, namespace)
		created, err := s.client.CreateCronJob(opCtx, namespace, w.CronJob)
		done(err)
		if err != nil {
			return "", err
		}
		result.CronJob = created
		return created.Name, nil
	default:
		opCtx, done := s.startOperation(ctx, instrumentation.OperationCreate, k8s.ResourceJob, namespace)
		created, err := s.client.CreateJob(opCtx, namespace, w.Job)
		done(err)
		if err != nil {
			return "", err
		}
		result.Job = created
		return created.Name, nil
	}
}

// compensate deletes the resources created before a failed phase. It runs on
// a fresh context so cancellation of the request cannot strand them, and
// failures are only logged; the original phase error is what the caller
// reports.
func (s *Submitter) compensate(ctx context.Context, namespace string, logger *slog.Logger, secret *corev1.Secret, configMap *corev1.ConfigMap) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if configMap != nil {
		opCtx, done := s.startOperation(cleanupCtx, instrumentation.OperationDelete, k8s.ResourceConfigMap, namespace)
		err := s.client.DeleteConfigMap(opCtx, namespace, configMap.Name)
		done(err)
		if err != nil {
			logger.Error("failed to clean up configmap after failed submission",
				logging.ResourceName(configMap.Name), logging.Err(err))
		}
	}
	if secret != nil {
		opCtx, done := s.startOperation(cleanupCtx, instrumentation.OperationDelete, k8s.ResourceSecret, namespace)
		err := s.client.DeleteSecret(opCtx, namespace, secret.Name)
		done(err)
		if err != nil {
			logger.Error("failed to clean up secret after failed submission",
				logging.ResourceName(secret.Name), logging.Err(err))
		}
	}
}

// patchOwnership points the children's ownerReferences at the created
// workload so cluster garbage collection ties their lifetimes together.
func (s *Submitter) patchOwnership(ctx context.Context, namespace string, logger *slog.Logger, result *Result) {
	patch, err := ownerReferencePatch(result)
	if err != nil {
		logger.Error("failed to encode owner reference patch", logging.Err(err))
		return
	}

	opCtx, done := s.startOperation(ctx, instrumentation.OperationPatch, k8s.ResourceSecret, namespace)
	err = s.client.PatchSecret(opCtx, namespace, result.Secret.Name, patch)
	done(err)
	if err != nil {
		logger.Warn("failed to patch secret ownership",
			logging.ResourceName(result.Secret.Name), logging.Err(err))
	}

	if result.ConfigMap != nil {
		opCtx, done := s.startOperation(ctx, instrumentation.OperationPatch, k8s.ResourceConfigMap, namespace)
		err = s.client.PatchConfigMap(opCtx, namespace, result.ConfigMap.Name, patch)
		done(err)
		if err != nil {
			logger.Warn("failed to patch configmap ownership",
				logging.ResourceName(result.ConfigMap.Name), logging.Err(err))
		}
	}
}

func ownerReferencePatch(result *Result) ([]byte, error) {
	ref := metav1.OwnerReference{
		APIVersion: "batch/v1",
		Kind:       string(result.Kind),
		Name:       result.Name,
	}
	switch {
	case result.Job != nil:
		ref.UID = result.Job.UID
	case result.CronJob != nil:
		ref.UID = result.CronJob.UID
	}

	return json.Marshal(map[string]any{
		"metadata": map[string]any{
			"ownerReferences": []metav1.OwnerReference{ref},
		},
	})
}

// startOperation opens a span for one cluster operation under the submission
// span. The returned finish func ends the span, marks it failed for a non-nil
// error, and records the operation metric.
func (s *Submitter) startOperation(ctx context.Context, operation, resourceType, namespace string) (context.Context, func(error)) {
	opCtx, span := instrumentation.StartK8sSpan(ctx, operation, resourceType, namespace)
	start := time.Now()
	return opCtx, func(err error) {
		instrumentation.SetSpanError(span, err)
		span.End()
		if s.metrics == nil {
			return
		}
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		s.metrics.RecordK8sOperation(opCtx, operation, resourceType, namespace, status, time.Since(start))
	}
}

func (s *Submitter) recordSubmission(ctx context.Context, kind workload.Kind, status string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSubmission(ctx, string(kind), status, duration)
}
