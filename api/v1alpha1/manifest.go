package v1alpha1

import (
	"fmt"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

// ParseManifests parses a YAML or JSON stream of RESTResource documents separated
// by "---". Empty documents are skipped.
func ParseManifests(data string) ([]*RESTResource, error) {
	var resources []*RESTResource

	for i, doc := range strings.Split(data, "\n---") {
		doc = strings.TrimSpace(strings.TrimPrefix(doc, "---"))
		if doc == "" {
			continue
		}

		res := &RESTResource{}
		if err := yaml.UnmarshalStrict([]byte(doc), res); err != nil {
			return nil, fmt.Errorf("failed to parse document %d: %w", i, err)
		}
		if err := res.Validate(); err != nil {
			return nil, fmt.Errorf("invalid document %d: %w", i, err)
		}
		resources = append(resources, res)
	}

	return resources, nil
}

// LoadManifests reads and parses every file in paths.
func LoadManifests(paths []string) ([]*RESTResource, error) {
	var all []*RESTResource
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
		resources, err := ParseManifests(string(data))
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		all = append(all, resources...)
	}
	return all, nil
}

// Validate checks the fields the runtime depends on.
func (r *RESTResource) Validate() error {
	if r.APIVersion != "" && r.APIVersion != GroupVersion {
		return fmt.Errorf("unsupported apiVersion %q", r.APIVersion)
	}
	if r.Kind != "" && r.Kind != Kind {
		return fmt.Errorf("unsupported kind %q", r.Kind)
	}
	if r.Spec.URL == "" {
		return fmt.Errorf("spec.url is required")
	}
	if len(r.Spec.Actions) == 0 {
		return fmt.Errorf("spec.actions must declare at least one action")
	}
	declared := make(map[string]bool, len(r.Spec.Actions))
	for i, action := range r.Spec.Actions {
		if action.ID == "" {
			return fmt.Errorf("spec.actions[%d].id is required", i)
		}
		declared[action.ID] = true
	}
	for i, sync := range r.Spec.Sync {
		if !declared[sync.Action] {
			return fmt.Errorf("spec.sync[%d] references undeclared action %q", i, sync.Action)
		}
	}
	if _, err := r.Spec.GetPollInterval(); err != nil {
		return err
	}
	return nil
}

// GetPollInterval parses PollInterval. An empty value means no polling.
func (s *RESTResourceSpec) GetPollInterval() (time.Duration, error) {
	if s.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid pollInterval %q: %w", s.PollInterval, err)
	}
	return d, nil
}
