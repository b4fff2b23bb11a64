package workload

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

var (
	jobType       = reflect.TypeOf(batchv1.Job{})
	cronJobType   = reflect.TypeOf(batchv1.CronJob{})
	configMapType = reflect.TypeOf(corev1.ConfigMap{})
	podSpecType   = reflect.TypeOf(corev1.PodSpec{})

	jsonUnmarshaler = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// ParseJob turns a free-form job mapping into a typed Job workload. The
// administrator template, if non-nil, must already be normalized (see
// NormalizeJob); it is merged over the user's object so template values win.
func ParseJob(data, template map[string]any) (*Workload, error) {
	normalized, err := NormalizeJob(data)
	if err != nil {
		return nil, err
	}
	if template != nil {
		normalized = Merge(normalized, template)
	}
	job := &batchv1.Job{}
	if err := decodeInto(normalized, job); err != nil {
		return nil, err
	}
	w := &Workload{Kind: KindJob, Job: job}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ParseCronJob is ParseJob for CronJob submissions. The template is merged at
// the top level, exactly as for Jobs; keys that only make sense on a Job are
// dropped during decoding.
func ParseCronJob(data, template map[string]any) (*Workload, error) {
	normalized, err := normalizeObject(data, cronJobType, "cronjob")
	if err != nil {
		return nil, err
	}
	if template != nil {
		normalized = Merge(normalized, template)
	}
	cronJob := &batchv1.CronJob{}
	if err := decodeInto(normalized, cronJob); err != nil {
		return nil, err
	}
	w := &Workload{Kind: KindCronJob, CronJob: cronJob}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ParseConfigMap turns the submission's code mapping into a typed ConfigMap.
// binaryData values arrive base64-encoded and are decoded here; a value that
// is not valid base64 is a malformed submission.
func ParseConfigMap(data map[string]any) (*corev1.ConfigMap, error) {
	normalized, err := normalizeObject(data, configMapType, "code")
	if err != nil {
		return nil, err
	}
	configMap := &corev1.ConfigMap{}
	if err := decodeInto(normalized, configMap); err != nil {
		return nil, err
	}
	return configMap, nil
}

// NormalizeJob rewrites a free-form job mapping into the canonical camelCase
// key form of the Kubernetes API, guided by the Job schema. Keys may arrive
// in canonical form or as snake_case aliases (the form Kubernetes client
// libraries emit when dumping models); unknown keys are dropped. Only
// structural keys are rewritten: data-carrying maps such as labels,
// annotations, and binaryData pass through untouched.
func NormalizeJob(data map[string]any) (map[string]any, error) {
	return normalizeObject(data, jobType, "job")
}

func normalizeObject(data map[string]any, t reflect.Type, path string) (map[string]any, error) {
	if data == nil {
		return nil, malformedf("submission requires a %s object", path)
	}
	normalized, err := normalizeValue(data, t, path)
	if err != nil {
		return nil, err
	}
	return normalized.(map[string]any), nil
}

func decodeInto(m map[string]any, obj any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding normalized workload: %w", err)
	}
	if err := json.Unmarshal(raw, obj); err != nil {
		return malformedf("workload does not match the Kubernetes schema: %v", err)
	}
	return nil
}

func normalizeValue(value any, t reflect.Type, path string) (any, error) {
	if value == nil {
		return nil, nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		// Quantity, IntOrString, and Time decode themselves from scalars.
		if reflect.PointerTo(t).Implements(jsonUnmarshaler) {
			return value, nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, malformedf("%s: expected an object, got %T", path, value)
		}
		return normalizeStruct(m, t, path)
	case reflect.Slice:
		elem := t.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct || reflect.PointerTo(elem).Implements(jsonUnmarshaler) {
			return value, nil
		}
		list, ok := value.([]any)
		if !ok {
			return nil, malformedf("%s: expected a list, got %T", path, value)
		}
		out := make([]any, len(list))
		for i, item := range list {
			normalized, err := normalizeValue(item, elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	default:
		// Scalars and data-carrying maps pass through untouched.
		return value, nil
	}
}

func normalizeStruct(m map[string]any, t reflect.Type, path string) (map[string]any, error) {
	out := make(map[string]any, len(m))
	if err := normalizeFields(m, t, path, out); err != nil {
		return nil, err
	}
	// A pod spec without containers still needs an explicit empty list so the
	// rest of the pipeline can treat containers as always present.
	if t == podSpecType {
		if v, ok := out["containers"]; !ok || v == nil {
			out["containers"] = []any{}
		}
	}
	return out, nil
}

func normalizeFields(m map[string]any, t reflect.Type, path string, out map[string]any) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" {
			// Embedded inline structs (TypeMeta, VolumeSource) contribute
			// their fields at this level.
			if field.Anonymous && strings.Contains(opts, "inline") {
				ft := field.Type
				for ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					if err := normalizeFields(m, ft, path, out); err != nil {
						return err
					}
				}
			}
			continue
		}
		if name == "-" {
			continue
		}
		value, ok := m[name]
		if !ok {
			value, ok = m[snakeCase(name)]
		}
		if !ok {
			continue
		}
		normalized, err := normalizeValue(value, field.Type, path+"."+name)
		if err != nil {
			return err
		}
		out[name] = normalized
	}
	return nil
}

// snakeCase converts a canonical camelCase key to the snake_case alias form,
// splitting where a lowercase letter meets an uppercase one and at the end of
// acronym runs: "generateName" -> "generate_name", "hostIPC" -> "host_ipc".
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
