package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const MinSecretLength = 32

var knownProviders = map[string]bool{
	"bitbucket": true,
	"github":    true,
}

// LoadConfig loads and validates the configuration from a YAML file.
func LoadConfig(configPath string) (*Config, map[string]*Target, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if config.Targets == nil {
		config.Targets = make(map[string]TargetConfig)
	}

	targets := make(map[string]*Target)
	for name, targetConfig := range config.Targets {
		errors := ValidateTargetConfig(name, targetConfig)
		if len(errors) > 0 {
			return nil, nil, fmt.Errorf("invalid configuration for target '%s':\n%s",
				name, strings.Join(errors, "\n"))
		}

		// Apply defaults
		branch := targetConfig.Branch
		if branch == "" {
			branch = "master"
		}

		autoDeploy := true
		if targetConfig.AutoDeploy != nil {
			autoDeploy = *targetConfig.AutoDeploy
		}

		useHTTPS := true
		if targetConfig.UseHTTPS != nil {
			useHTTPS = *targetConfig.UseHTTPS
		}

		// Credentials only ever travel over TLS
		if targetConfig.Username != "" {
			useHTTPS = true
		}

		resolvedDir, err := filepath.Abs(targetConfig.Target)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve target directory for '%s': %w", name, err)
		}

		targets[name] = &Target{
			Name:        name,
			Provider:    strings.ToLower(targetConfig.Provider),
			Dir:         resolvedDir,
			Branch:      branch,
			AutoDeploy:  autoDeploy,
			UseHTTPS:    useHTTPS,
			Username:    targetConfig.Username,
			Password:    targetConfig.Password,
			IPAllowList: targetConfig.IPAllowList,
			Secret:      targetConfig.Secret,
			GitHubToken: targetConfig.GitHubToken,
			LogPath:     targetConfig.Log,
		}
	}

	return &config, targets, nil
}

// ValidateTargetConfig validates a single target configuration.
func ValidateTargetConfig(name string, config TargetConfig) []string {
	var errors []string

	if config.Provider == "" {
		errors = append(errors, fmt.Sprintf("  - Target '%s': missing required 'provider' field", name))
	} else if !knownProviders[strings.ToLower(config.Provider)] {
		errors = append(errors, fmt.Sprintf("  - Target '%s': unknown provider '%s'", name, config.Provider))
	}

	if config.Target == "" {
		errors = append(errors, fmt.Sprintf("  - Target '%s': missing required 'target' field", name))
	} else if !filepath.IsAbs(config.Target) {
		errors = append(errors, fmt.Sprintf("  - Target '%s': target directory must be absolute, got '%s'", name, config.Target))
	}

	branch := config.Branch
	if strings.HasPrefix(branch, "-") {
		errors = append(errors, fmt.Sprintf("  - Target '%s': branch name cannot start with '-', got '%s'", name, branch))
	}

	if config.Secret != "" && len(config.Secret) < MinSecretLength {
		errors = append(errors, fmt.Sprintf("  - Target '%s': secret too short (minimum %d characters)", name, MinSecretLength))
	}

	if config.Password != "" && config.Username == "" {
		errors = append(errors, fmt.Sprintf("  - Target '%s': password set without username", name))
	}

	for i, addr := range config.IPAllowList {
		if strings.TrimSpace(addr) == "" {
			errors = append(errors, fmt.Sprintf("  - Target '%s': ip_allow_list[%d] is empty", name, i))
		}
	}

	return errors
}
