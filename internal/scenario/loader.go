package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"scenarioctl/internal/artifact"
)

// LoadSuite reads a suite file. Unknown keys are rejected, the fixture directory
// is resolved relative to the file, and the suite is validated.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}

	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve suite path %s: %w", path, err)
	}
	suite.Path = absPath

	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if !filepath.IsAbs(suite.FixtureDir) {
		suite.FixtureDir = filepath.Join(filepath.Dir(absPath), suite.FixtureDir)
	}

	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return &suite, nil
}

// LoadSuites loads every path in order, failing on the first invalid suite.
func LoadSuites(paths []string) ([]*Suite, error) {
	suites := make([]*Suite, 0, len(paths))
	for _, p := range paths {
		s, err := LoadSuite(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Validate checks the suite's cases and artifact specs.
func (s *Suite) Validate() error {
	if len(s.Cases) == 0 {
		return fmt.Errorf("suite %q has no cases", s.Name)
	}
	for i, c := range s.Cases {
		if c.Path == "" {
			return fmt.Errorf("cases[%d]: path is required", i)
		}
		if c.Description == "" {
			return fmt.Errorf("cases[%d] (%s): description is required", i, c.Path)
		}
	}
	if len(s.Setup) > 0 && s.Setup[0] == "" {
		return fmt.Errorf("setup: command must not be empty")
	}
	return artifact.Validate(s.Artifacts)
}
