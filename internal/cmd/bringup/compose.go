package bringup

import (
	"os"

	"github.com/spf13/cobra"

	command "github.com/buildmesh/bringup/internal/cmd"
	"github.com/buildmesh/bringup/internal/compose"
	"github.com/buildmesh/bringup/internal/topology"
)

// NewCompose renders the finalized manifest without touching the cluster,
// for review and for reproducing exactly what a run would submit.
func NewCompose() *cobra.Command {
	return command.Command(&Compose{}, cobra.Command{
		Use:   "compose",
		Short: "Render the finalized deployment manifest",
	})
}

type Compose struct {
	ComposeArgs
	Output string `usage:"Output contents to file or - for stdout" short:"o" default:"-"`
}

func (c *Compose) Run(_ *cobra.Command, _ []string) error {
	opts, err := c.ComposeArgs.Options()
	if err != nil {
		return err
	}

	desc := topology.Default(Client.GetNamespace())
	manifest, err := compose.Compose(desc, opts.Patches())
	if err != nil {
		return err
	}

	if c.Output == "-" || c.Output == "" {
		_, err = os.Stdout.Write(manifest)
		return err
	}
	return os.WriteFile(c.Output, manifest, 0644)
}
