package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// InstructorsFile is an optional standalone tier list that operators can
// maintain separately from the main config.
type InstructorsFile struct {
	Instructors struct {
		Elite      []string `yaml:"elite"`
		Recognized []string `yaml:"recognized"`
		Solid      []string `yaml:"solid"`
	} `yaml:"instructors"`
}

// OverlayInstructors replaces the config's tier lists with the ones from
// instructorsPath when that file exists and has entries.
func OverlayInstructors(cfg *Config, instructorsPath string) error {
	b, err := os.ReadFile(instructorsPath)
	if err != nil {
		// Missing tier file should not kill startup
		return nil
	}

	var f InstructorsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}

	if len(f.Instructors.Elite) > 0 {
		cfg.Instructors.Elite = f.Instructors.Elite
	}
	if len(f.Instructors.Recognized) > 0 {
		cfg.Instructors.Recognized = f.Instructors.Recognized
	}
	if len(f.Instructors.Solid) > 0 {
		cfg.Instructors.Solid = f.Instructors.Solid
	}
	return nil
}
