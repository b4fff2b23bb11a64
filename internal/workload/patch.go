package workload

import (
	"fmt"
	"sort"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

// UsernameKey carries the submitting user's identity on every patched
// resource, as an annotation (raw username) and as a label (escaped).
const UsernameKey = "kbatch.jupyter.org/username"

const (
	codeSourceVolumeName = "code-source-volume"
	codeVolumeName       = "code-volume"

	unzipScript = "echo [unzip]; unzip -d /code/ /code-zipped/code.b64 ;echo [ls code] ; ls /code ;"
)

// PatchOptions parameterize one run of Patch.
type PatchOptions struct {
	// Username is the raw JupyterHub username of the submitter.
	Username string
	// APIToken is the caller's forwarded token; injected as
	// JUPYTERHUB_API_TOKEN when non-empty.
	APIToken string
	// Annotations and Labels are merged into the workload's metadata on top
	// of whatever the user supplied.
	Annotations map[string]string
	Labels      map[string]string
	// ExtraEnv is appended to the first container's environment, sorted by
	// name so repeated submissions patch identically.
	ExtraEnv map[string]string
	// TTLSecondsAfterFinished replaces whatever the submission carried; nil
	// clears it, deferring to the cluster default.
	TTLSecondsAfterFinished *int32
}

// Patch rewrites the workload in place so it is safe to run on the user's
// behalf, and returns the Secret holding every literal env value that was
// extracted. For CronJobs the embedded job template is the patch target; the
// attached ConfigMap, when present, is stamped into the user's namespace and
// wired in as an init-container-populated code volume.
//
// The operations run in a fixed order: identity annotations/labels, namespace
// stamping, env injection, TTL, code-volume wiring, env extraction. Given
// identical inputs the result is identical, modulo names the API server
// assigns later.
func Patch(w *Workload, configMap *corev1.ConfigMap, opts PatchOptions) (*corev1.Secret, error) {
	meta, spec := w.Target()
	if len(spec.Template.Spec.Containers) == 0 {
		return nil, malformedf("job spec requires at least one container")
	}

	namespace := NamespaceForUsername(opts.Username)

	addIdentity(meta, spec, opts)
	meta.Namespace = namespace
	spec.Template.ObjectMeta.Namespace = namespace
	addEnv(spec, opts)
	spec.TTLSecondsAfterFinished = opts.TTLSecondsAfterFinished

	if configMap != nil {
		configMap.Namespace = namespace
		addUnzipInitContainer(meta, spec)
	}
	return extractEnvSecret(meta, spec), nil
}

// addIdentity merges the configured annotations/labels plus the username
// stamp into the outer and pod-template metadata.
func addIdentity(meta *metav1.ObjectMeta, spec *batchv1.JobSpec, opts PatchOptions) {
	annotations := make(map[string]string, len(opts.Annotations)+1)
	for k, v := range opts.Annotations {
		annotations[k] = v
	}
	annotations[UsernameKey] = opts.Username

	labels := make(map[string]string, len(opts.Labels)+1)
	for k, v := range opts.Labels {
		labels[k] = v
	}
	labels[UsernameKey] = EscapeLabelValue(opts.Username)

	podMeta := &spec.Template.ObjectMeta
	for _, m := range []*metav1.ObjectMeta{meta, podMeta} {
		if m.Annotations == nil {
			m.Annotations = make(map[string]string, len(annotations))
		}
		for k, v := range annotations {
			m.Annotations[k] = v
		}
		if m.Labels == nil {
			m.Labels = make(map[string]string, len(labels))
		}
		for k, v := range labels {
			m.Labels[k] = v
		}
	}
}

// addEnv appends the configured extra env pairs and the Jupyter runtime
// variables to the first container.
func addEnv(spec *batchv1.JobSpec, opts PatchOptions) {
	container := &spec.Template.Spec.Containers[0]

	names := make([]string, 0, len(opts.ExtraEnv))
	for name := range opts.ExtraEnv {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]corev1.EnvVar, 0, len(names)+3)
	for _, name := range names {
		env = append(env, corev1.EnvVar{Name: name, Value: opts.ExtraEnv[name]})
	}
	env = append(env,
		corev1.EnvVar{Name: "JUPYTER_IMAGE", Value: container.Image},
		corev1.EnvVar{Name: "JUPYTER_IMAGE_SPEC", Value: container.Image},
	)
	if opts.APIToken != "" {
		env = append(env, corev1.EnvVar{Name: "JUPYTERHUB_API_TOKEN", Value: opts.APIToken})
	}
	container.Env = append(container.Env, env...)
}

// extractEnvSecret moves every literal env value in every container into a
// new Secret and replaces the entry with a secretKeyRef against the Secret's
// generateName. The Submitter rewrites the reference to the server-assigned
// name once the Secret exists. Entries already using valueFrom are left
// alone.
func extractEnvSecret(meta *metav1.ObjectMeta, spec *batchv1.JobSpec) *corev1.Secret {
	labels := make(map[string]string, len(meta.Labels))
	for k, v := range meta.Labels {
		labels[k] = v
	}
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:         meta.Name,
			GenerateName: meta.GenerateName,
			Labels:       labels,
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{},
	}
	for ci := range spec.Template.Spec.Containers {
		container := &spec.Template.Spec.Containers[ci]
		for ei := range container.Env {
			env := &container.Env[ei]
			if env.ValueFrom != nil || env.Value == "" {
				continue
			}
			secret.Data[env.Name] = []byte(env.Value)
			container.Env[ei] = corev1.EnvVar{
				Name: env.Name,
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{
							Name: secret.GenerateName,
						},
						Key: env.Name,
					},
				},
			}
		}
	}
	return secret
}

// SetEnvSecretName rewrites every secretKeyRef that still points at the
// Secret's pre-submission generateName to its server-assigned name.
func SetEnvSecretName(spec *batchv1.JobSpec, secret *corev1.Secret) {
	for ci := range spec.Template.Spec.Containers {
		container := &spec.Template.Spec.Containers[ci]
		for ei := range container.Env {
			ref := container.Env[ei].ValueFrom
			if ref != nil && ref.SecretKeyRef != nil && ref.SecretKeyRef.Name == secret.GenerateName {
				ref.SecretKeyRef.Name = secret.Name
			}
		}
	}
}

// addUnzipInitContainer wires the code bundle into the pod: an init container
// unzips the ConfigMap-mounted archive into an emptyDir shared with the
// primary container.
//
// The two volumes are appended in a fixed order so the ConfigMap-backed one
// sits at index len-2; SetCodeConfigMapName patches the server-assigned
// ConfigMap name into that slot after submission.
func addUnzipInitContainer(meta *metav1.ObjectMeta, spec *batchv1.JobSpec) {
	codeVolume := corev1.Volume{
		Name: codeSourceVolumeName,
		VolumeSource: corev1.VolumeSource{
			ConfigMap: &corev1.ConfigMapVolumeSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: codeSourceVolumeName},
				Optional:             ptr.To(false),
				Items:                []corev1.KeyToPath{{Key: "code", Path: "code.b64"}},
			},
		},
	}
	codeDstVolume := corev1.Volume{
		Name:         codeVolumeName,
		VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
	}
	codeMount := corev1.VolumeMount{Name: codeSourceVolumeName, MountPath: "/code-zipped", ReadOnly: false}
	codeDstMount := corev1.VolumeMount{Name: codeVolumeName, MountPath: "/code"}

	base := meta.GenerateName
	if base == "" {
		base = meta.Name
	}
	unzipContainer := corev1.Container{
		Name:         base + "-init",
		Image:        "busybox",
		Command:      []string{"/bin/sh"},
		Args:         []string{"-c", unzipScript},
		VolumeMounts: []corev1.VolumeMount{codeMount, codeDstMount},
	}

	podSpec := &spec.Template.Spec
	podSpec.InitContainers = append([]corev1.Container{unzipContainer}, podSpec.InitContainers...)
	podSpec.Volumes = append(podSpec.Volumes, codeVolume, codeDstVolume)
	podSpec.Containers[0].VolumeMounts = append(podSpec.Containers[0].VolumeMounts, codeDstMount)
}

// SetCodeConfigMapName writes the server-assigned ConfigMap name into the
// code-source volume slot reserved by addUnzipInitContainer.
func SetCodeConfigMapName(spec *batchv1.JobSpec, configMap *corev1.ConfigMap) error {
	volumes := spec.Template.Spec.Volumes
	if len(volumes) < 2 || volumes[len(volumes)-2].ConfigMap == nil {
		return fmt.Errorf("pod spec does not carry a code-source volume at index len-2")
	}
	volumes[len(volumes)-2].ConfigMap.Name = configMap.Name
	return nil
}
