package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/kbatch-dev/kbatch-proxy/internal/workload"
)

// LoadJobTemplate reads the administrator's job template YAML and returns it
// in the normalized mapping form the submission merge expects. An empty path
// or an empty file means no template. The file must describe a partial
// batch/v1 Job; nulls and empty collections are pruned so fields the
// template leaves out never erase user values during the merge.
func LoadJobTemplate(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job template file %s: %w", path, err)
	}

	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse job template file %s: %w", path, err)
	}
	if data == nil {
		return nil, nil
	}

	normalized, err := workload.NormalizeJob(data)
	if err != nil {
		return nil, fmt.Errorf("job template file %s: %w", path, err)
	}
	workload.PruneNulls(normalized)
	if len(normalized) == 0 {
		return nil, nil
	}
	return normalized, nil
}
