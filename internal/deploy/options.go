package deploy

import "os"

// Options is the fixed set of recognized deployment settings.
type Options struct {
	UseHTTPS    bool
	TargetDir   string
	AutoDeploy  bool
	Branch      string
	IPAllowList []string
	LogPath     string
}

// DefaultOptions returns the option defaults: https on, auto-deploy on,
// branch master, target directory = process working directory.
func DefaultOptions() Options {
	wd, _ := os.Getwd()
	return Options{
		UseHTTPS:   true,
		TargetDir:  wd,
		AutoDeploy: true,
		Branch:     "master",
	}
}

// apply overwrites only the recognized keys present in overrides.
// Unknown keys and wrongly-typed values are ignored, not errors.
func (o *Options) apply(overrides map[string]any) {
	for key, v := range overrides {
		switch key {
		case "use_https":
			if b, ok := v.(bool); ok {
				o.UseHTTPS = b
			}
		case "target":
			if s, ok := v.(string); ok && s != "" {
				o.TargetDir = s
			}
		case "auto_deploy":
			if b, ok := v.(bool); ok {
				o.AutoDeploy = b
			}
		case "branch":
			if s, ok := v.(string); ok && s != "" {
				o.Branch = s
			}
		case "ip_allow_list":
			switch list := v.(type) {
			case []string:
				o.IPAllowList = append([]string(nil), list...)
			case []any:
				var addrs []string
				for _, item := range list {
					if s, ok := item.(string); ok {
						addrs = append(addrs, s)
					}
				}
				o.IPAllowList = addrs
			}
		case "log":
			if s, ok := v.(string); ok && s != "" {
				o.LogPath = s
			}
		}
	}
}
