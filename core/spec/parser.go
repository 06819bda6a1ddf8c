package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BuildPlan represents the YAML pack build plan
type BuildPlan struct {
	Pack BuildPlanPack `yaml:"pack"`
}

// BuildPlanPack represents the pack section of the plan
type BuildPlanPack struct {
	OutputDir       string             `yaml:"output_dir"`
	DownsampleHz    int                `yaml:"downsample_hz"` // fixed at 1 today, parsed for future use
	ContinueOnError bool               `yaml:"continue_on_error"`
	Sessions        []BuildPlanSession `yaml:"sessions"`
}

// BuildPlanSession names one session to build
type BuildPlanSession struct {
	ID string `yaml:"id"`
}

// Plan is the resolved build plan
type Plan struct {
	OutputDir       string
	DownsampleHz    int
	ContinueOnError bool
	Sessions        []string
}

// ParseBuildPlan parses a YAML build plan into a resolved Plan
func ParseBuildPlan(planYAML string) (*Plan, error) {
	var plan BuildPlan
	if err := yaml.Unmarshal([]byte(planYAML), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(plan.Pack.Sessions) == 0 {
		return nil, fmt.Errorf("build plan names no sessions")
	}

	resolved := &Plan{
		OutputDir:       plan.Pack.OutputDir,
		DownsampleHz:    plan.Pack.DownsampleHz,
		ContinueOnError: plan.Pack.ContinueOnError,
	}

	for i, session := range plan.Pack.Sessions {
		if session.ID == "" {
			return nil, fmt.Errorf("build plan session %d has no id", i)
		}
		resolved.Sessions = append(resolved.Sessions, session.ID)
	}

	// Set defaults
	if resolved.DownsampleHz == 0 {
		resolved.DownsampleHz = 1
	}

	return resolved, nil
}
