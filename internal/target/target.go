package target

// Target is a validated deployment target: one repository deployed to
// one local directory.
type Target struct {
	Name        string
	Provider    string
	Dir         string
	Branch      string
	AutoDeploy  bool
	UseHTTPS    bool
	Username    string
	Password    string
	IPAllowList []string // nil means "use the provider default"
	Secret      string
	GitHubToken string
	LogPath     string
}

// TargetConfig represents the YAML configuration for a target.
// Pointer fields distinguish "absent" from an explicit false/empty.
type TargetConfig struct {
	Provider    string   `yaml:"provider"`
	Target      string   `yaml:"target"`
	Branch      string   `yaml:"branch"`
	AutoDeploy  *bool    `yaml:"auto_deploy"`
	UseHTTPS    *bool    `yaml:"use_https"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	IPAllowList []string `yaml:"ip_allow_list"`
	Secret      string   `yaml:"secret"`
	GitHubToken string   `yaml:"github_token"`
	Log         string   `yaml:"log"`
}

// Config represents the root configuration structure.
type Config struct {
	Targets map[string]TargetConfig `yaml:"targets"`
}

// Overrides returns the option overrides this target carries, keyed by
// the recognized deployment option names. Absent settings are omitted so
// defaults survive.
func (t *Target) Overrides() map[string]any {
	overrides := map[string]any{
		"target":    t.Dir,
		"use_https": t.UseHTTPS,
	}
	if t.Branch != "" {
		overrides["branch"] = t.Branch
	}
	overrides["auto_deploy"] = t.AutoDeploy
	if t.IPAllowList != nil {
		overrides["ip_allow_list"] = t.IPAllowList
	}
	if t.LogPath != "" {
		overrides["log"] = t.LogPath
	}
	return overrides
}
