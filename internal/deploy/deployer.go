package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hookdeploy/internal/webhook"
	"hookdeploy/pkg/cmdutil"
	"hookdeploy/pkg/fileutil"
)

// DefaultStepTimeout bounds each git step. Git operations against a cold
// remote can be slow, so this is generous rather than tight.
const DefaultStepTimeout = 10 * time.Minute

// Runner executes one external command in an explicit working directory.
// The deployer never changes the ambient process working directory; the
// target path travels with every call instead.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) (*cmdutil.Result, error)
}

// ExecRunner is the production Runner backed by pkg/cmdutil.
type ExecRunner struct {
	Timeout time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, dir string, argv []string) (*cmdutil.Result, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultStepTimeout
	}
	return cmdutil.Run(ctx, cmdutil.ExecOptions{Dir: dir, Timeout: timeout}, argv)
}

// Credentials is an optional username/password pair for the remote.
// Setting credentials forces HTTPS.
type Credentials struct {
	Username string
	Password string
}

// Deployer sequences one deployment: resolve the clone URL and target
// commit, then bring the target directory to that commit with git.
// A Deployer lives for one request-handling lifecycle.
type Deployer struct {
	provider webhook.Provider
	opts     Options
	creds    *Credentials
	runner   Runner
	logger   *slog.Logger
}

// NewDeployer creates a deployer for one provider with default options.
// The provider's known webhook addresses seed the IP allow-list until
// Configure overrides them.
func NewDeployer(provider webhook.Provider, runner Runner, logger *slog.Logger) *Deployer {
	opts := DefaultOptions()
	opts.IPAllowList = provider.DefaultAllowList()
	return &Deployer{
		provider: provider,
		opts:     opts,
		runner:   runner,
		logger:   logger,
	}
}

// Configure bulk-updates the recognized options. Keys outside the
// recognized set are ignored.
func (d *Deployer) Configure(overrides map[string]any) {
	d.opts.apply(overrides)
}

// Options returns a copy of the current options.
func (d *Deployer) Options() Options {
	opts := d.opts
	opts.IPAllowList = append([]string(nil), d.opts.IPAllowList...)
	return opts
}

// Authenticate stores remote credentials. Credentials only ever travel
// over TLS, so this forces HTTPS on.
func (d *Deployer) Authenticate(username, password string) {
	d.creds = &Credentials{Username: username, Password: password}
	d.opts.UseHTTPS = true
	d.logger.Info("credentials configured", "user", username)
}

// AuthorizeRequest checks the caller-observed remote address against the
// allow-list. An empty allow-list permits everything.
func (d *Deployer) AuthorizeRequest(remoteIP string) error {
	if len(d.opts.IPAllowList) == 0 {
		d.logger.Info("request permitted", "ip", remoteIP, "filter", "none")
		return nil
	}
	for _, allowed := range d.opts.IPAllowList {
		if allowed == remoteIP {
			d.logger.Info("request permitted", "ip", remoteIP)
			return nil
		}
	}
	return &AccessDeniedError{IP: remoteIP}
}

// FindCommit resolves the commit to deploy from a validated payload.
func (d *Deployer) FindCommit(p *webhook.Payload) string {
	return SelectCommit(p.Commits, d.opts.AutoDeploy, d.logger)
}

// BuildURL resolves the clone/fetch URL for a validated payload.
func (d *Deployer) BuildURL(p *webhook.Payload) string {
	user, pass := "", ""
	if d.creds != nil {
		user, pass = d.creds.Username, d.creds.Password
	}
	return d.provider.BuildURL(p, d.opts.UseHTTPS, user, pass)
}

// Deploy runs the git sequence that brings the target directory to the
// selected commit, returning the commit id that was deployed. A payload
// whose URL or commit resolves to nothing is a successful no-op
// returning "". The terminal "deploy completed" entry is logged exactly
// once on every successful path.
func (d *Deployer) Deploy(ctx context.Context, p *webhook.Payload) (string, error) {
	url := d.BuildURL(p)
	commit := d.FindCommit(p)
	if url == "" || commit == "" {
		d.logger.Info("no node found to deploy")
		d.logger.Info("deploy completed", "target", d.opts.TargetDir)
		return "", nil
	}

	d.logger.Info("deploy started",
		"target", d.opts.TargetDir, "branch", d.opts.Branch, "commit", commit)

	if err := fileutil.EnsureDir(d.opts.TargetDir); err != nil {
		return commit, fmt.Errorf("failed to create target directory: %w", err)
	}

	// Probe for an existing repository. A failed probe is the expected
	// first-deploy condition, recovered by initializing one.
	if !d.isRepository(ctx) {
		if err := d.initRepository(ctx, url); err != nil {
			return commit, err
		}
	}

	if err := d.step(ctx, "git", "fetch", "origin", d.opts.Branch); err != nil {
		return commit, err
	}
	if err := d.step(ctx, "git", "checkout", "-f", commit); err != nil {
		return commit, err
	}

	d.logger.Info("deploy completed", "target", d.opts.TargetDir, "commit", commit)
	return commit, nil
}

// isRepository probes whether the target directory is already a git
// work tree. Probe failure is not escalated.
func (d *Deployer) isRepository(ctx context.Context) bool {
	result, err := d.runner.Run(ctx, d.opts.TargetDir,
		[]string{"git", "rev-parse", "--is-inside-work-tree"})
	return err == nil && result.OK()
}

func (d *Deployer) initRepository(ctx context.Context, url string) error {
	d.logger.Info("initializing repository", "target", d.opts.TargetDir)
	if err := d.step(ctx, "git", "init"); err != nil {
		return err
	}
	return d.step(ctx, "git", "remote", "add", "origin", url)
}

// step runs one git command in the target directory and converts a
// non-zero exit into a DeployError carrying the captured output.
func (d *Deployer) step(ctx context.Context, argv ...string) error {
	result, err := d.runner.Run(ctx, d.opts.TargetDir, argv)

	var output string
	exitCode := -1
	if result != nil {
		output = string(d.redact(result.Output))
		exitCode = result.ExitCode
	}

	if err != nil || !result.OK() {
		derr := &DeployError{
			Command:  d.redactedCommand(argv),
			Output:   output,
			ExitCode: exitCode,
		}
		d.logger.Info("deploy step failed",
			"command", derr.Command, "exit", derr.ExitCode, "output", derr.Output)
		return derr
	}

	d.logger.Info("deploy step", "command", d.redactedCommand(argv), "exit", result.ExitCode)
	return nil
}

func (d *Deployer) redact(output []byte) []byte {
	if d.creds == nil || d.creds.Password == "" {
		return output
	}
	return cmdutil.SanitizeOutput(output, []string{d.creds.Password})
}

func (d *Deployer) redactedCommand(argv []string) string {
	return string(d.redact([]byte(cmdutil.FormatCommand(argv))))
}
