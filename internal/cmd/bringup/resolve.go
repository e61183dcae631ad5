package bringup

import (
	"fmt"

	"github.com/spf13/cobra"

	command "github.com/buildmesh/bringup/internal/cmd"
	"github.com/buildmesh/bringup/internal/gateway"
)

// NewResolve prints the dynamically assigned gateway addresses of an
// already-converged stack.
func NewResolve() *cobra.Command {
	return command.Command(&Resolve{}, cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved gateway addresses",
	})
}

type Resolve struct{}

func (r *Resolve) Run(cmd *cobra.Command, _ []string) error {
	c, err := Client.Get()
	if err != nil {
		return err
	}

	addrs, err := gateway.New(c.Dynamic, c.Namespace).Resolve(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("cas\t%s\n", addrs.CAS)
	fmt.Printf("scheduler\t%s\n", addrs.Scheduler)
	return nil
}
