// Package bringup sets up the CLI commands for the bringup binary.
package bringup

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/buildmesh/bringup/internal/bringup"
	"github.com/buildmesh/bringup/internal/client"
	command "github.com/buildmesh/bringup/internal/cmd"
	"github.com/buildmesh/bringup/internal/compose"
	"github.com/buildmesh/bringup/internal/gitrev"
	"github.com/buildmesh/bringup/pkg/version"
)

type Getter interface {
	Get() (*client.Client, error)
	GetNamespace() string
}

var Client Getter

func App() *cobra.Command {
	root := command.Command(&Bringup{}, cobra.Command{
		Version:       version.FriendlyVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	root.AddCommand(
		NewUp(),
		NewCompose(),
		NewResolve(),
		NewSmoke(),
	)

	return root
}

type Bringup struct {
	command.DebugConfig
	Namespace  string `usage:"namespace the stack is deployed into" env:"BRINGUP_NAMESPACE" default:"buildmesh" short:"n"`
	Kubeconfig string `usage:"kubeconfig for authentication" short:"k"`
	Context    string `usage:"kubeconfig context for authentication"`
}

func (b *Bringup) Run(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}

func (b *Bringup) PersistentPre(_ *cobra.Command, _ []string) error {
	if err := b.SetupDebug(); err != nil {
		return err
	}
	Client = client.NewGetter(b.Kubeconfig, b.Context, b.Namespace)
	return nil
}

// ComposeArgs is the patch surface of the manifest composer: every value is
// environment-derived and maps to one named patch operation.
type ComposeArgs struct {
	Overlay string            `usage:"deployment overlay to select" env:"BRINGUP_OVERLAY" default:"lre"`
	RepoURL string            `usage:"source repository URL" name:"repo-url" env:"BRINGUP_REPO_URL" default:"https://github.com/buildmesh/buildmesh"`
	Branch  string            `usage:"source branch" env:"BRINGUP_BRANCH" default:"main"`
	Commit  string            `usage:"source commit, resolved from the branch tip when empty" env:"BRINGUP_COMMIT"`
	Images  map[string]string `usage:"unit image override (unit=ref)" name:"image"`
}

// Options pins a commit: composing with a moving branch would make the
// manifest depend on when it was rendered.
func (c *ComposeArgs) Options() (compose.Options, error) {
	commit := c.Commit
	if commit == "" {
		resolved, err := gitrev.Resolve(c.RepoURL, c.Branch)
		if err != nil {
			return compose.Options{}, err
		}
		commit = resolved
	}

	return compose.Options{
		Overlay: c.Overlay,
		RepoURL: c.RepoURL,
		Branch:  c.Branch,
		Commit:  commit,
		Images:  c.Images,
	}, nil
}

type WaitArgs struct {
	PollInterval           string `usage:"readiness poll interval" default:"5s"`
	CoreDeadline           string `usage:"deadline for core reconciliation" default:"15m"`
	PipelineCreateDeadline string `usage:"deadline for pipeline run creation" default:"30m"`
	PipelineDeadline       string `usage:"deadline for pipeline completion" default:"45m"`
	ConfigsDeadline        string `usage:"deadline for generated configuration reconciliation" default:"15m"`
	StackDeadline          string `usage:"deadline for full stack reconciliation" default:"15m"`
	RolloutDeadline        string `usage:"deadline for each unit rollout" default:"10m"`
	UnboundedPipelineWait  bool   `usage:"wait forever for the pipeline run to appear"`
}

func (w *WaitArgs) Interval() (time.Duration, error) {
	return time.ParseDuration(w.PollInterval)
}

func (w *WaitArgs) Deadlines() (bringup.Deadlines, error) {
	d := bringup.Deadlines{UnboundedPipelineWait: w.UnboundedPipelineWait}

	for _, bind := range []struct {
		value string
		dst   *time.Duration
	}{
		{w.CoreDeadline, &d.CoreReady},
		{w.PipelineCreateDeadline, &d.PipelineCreated},
		{w.PipelineDeadline, &d.PipelineSucceeded},
		{w.ConfigsDeadline, &d.ConfigsReady},
		{w.StackDeadline, &d.StackReady},
		{w.RolloutDeadline, &d.Rollout},
	} {
		v, err := time.ParseDuration(bind.value)
		if err != nil {
			return d, err
		}
		*bind.dst = v
	}

	return d, nil
}

type SmokeArgs struct {
	BuildClient string `usage:"Bazel-compatible build client executable" name:"build-client" default:"bazel"`
	Workspace   string `usage:"workspace directory the smoke build runs in" default:"."`
	Target      string `usage:"build target for the smoke build" default:"//:hello"`
	Instance    string `usage:"logical remote-execution instance name" env:"BRINGUP_INSTANCE" default:"main"`
}
