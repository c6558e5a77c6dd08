package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "uberjob.yaml"
	homeConfigName    = "config.yaml"
)

// RunConfigFile is the declarative override shape for uberjobctl run,
// letting a deployment pin worker/scheduler/retry defaults without
// repeating them on every invocation.
type RunConfigFile struct {
	Workers   *int   `yaml:"workers,omitempty"`
	MaxErrors *int   `yaml:"max_errors,omitempty"`
	StoreDir  string `yaml:"store_dir,omitempty"`
	Scheduler string `yaml:"scheduler,omitempty"`
	Retries   *int   `yaml:"retries,omitempty"`
}

// discoverConfigPath resolves the config file location with first-match
// semantics: an explicit --config path takes priority, then
// ./uberjob.yaml, then ~/.uberjob/config.yaml.
func discoverConfigPath(explicitPath, cwd, homeDir string) (string, bool, error) {
	var candidates []string
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".uberjob", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// loadRunConfig reads and parses path as a RunConfigFile.
func loadRunConfig(path string) (RunConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfigFile{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	var cfg RunConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfigFile{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}
