package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// walltimePattern matches scheduler walltimes like 10:00:00 or 120:30:00.
var walltimePattern = regexp.MustCompile(`^\d+:\d\d:\d\d$`)

// Resources describes the scheduler request for one job.
type Resources struct {
	CPUs     int    `yaml:"cpus" validate:"min=1"`
	Memory   string `yaml:"memory" validate:"required"`
	Walltime string `yaml:"walltime" validate:"required,walltime"`
}

// Profiles holds the resource requests for the array job and its
// dependent merge job, plus the concurrency cap on array tasks.
type Profiles struct {
	Main  Resources `yaml:"main"`
	Merge Resources `yaml:"merge"`
	// MaxRunning caps how many array tasks run at once.
	MaxRunning int `yaml:"max_running" validate:"min=1"`
}

// DefaultProfiles returns the resource requests used in production: a
// HiSeq lane aligns comfortably within these, and the merge is small
// relative to the array work.
func DefaultProfiles() Profiles {
	return Profiles{
		Main:       Resources{CPUs: 8, Memory: "64g", Walltime: "10:00:00"},
		Merge:      Resources{CPUs: 6, Memory: "48g", Walltime: "4:00:00"},
		MaxRunning: 8,
	}
}

// ScaleForReads bumps the array job request when the artifact's HTML
// summary reports a very large input.
func (p Profiles) ScaleForReads(totalReads int64) Profiles {
	switch {
	case totalReads > 10_000_000_000:
		p.Main.Memory = "128g"
		p.Main.Walltime = "40:00:00"
	case totalReads > 2_000_000_000:
		p.Main.Memory = "96g"
		p.Main.Walltime = "20:00:00"
	}
	return p
}

// LoadProfiles reads a YAML resource profile file over the defaults.
// An empty path returns the defaults unchanged.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return profiles, fmt.Errorf("failed to read resource profiles %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &profiles); err != nil {
			return profiles, fmt.Errorf("failed to parse resource profiles %s: %w", path, err)
		}
	}

	if err := profiles.Validate(); err != nil {
		return profiles, err
	}
	return profiles, nil
}

// Validate checks the profile values a scheduler would reject anyway,
// so bad profiles fail before a script is generated.
func (p *Profiles) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("walltime", func(fl validator.FieldLevel) bool {
		return walltimePattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("invalid resource profiles: %w", err)
	}
	return nil
}
