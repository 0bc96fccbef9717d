package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

// CommandBuilder helps create standardized check commands
type CommandBuilder struct {
	Use          string
	Aliases      []string
	Short        string
	Long         string
	MinArgs      int
	MaxArgs      int
	ExampleUsage []string
}

// BuildCommand creates a cobra command that validates its argument count and
// prints errors without the usage text
func (cb *CommandBuilder) BuildCommand(runFunc func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cobraCmd := &cobra.Command{
		Use:          cb.Use,
		Aliases:      cb.Aliases,
		Short:        cb.Short,
		Long:         cb.Long,
		Args:         cobra.RangeArgs(cb.MinArgs, cb.MaxArgs),
		SilenceUsage: true,
		RunE:         runFunc,
	}

	if len(cb.ExampleUsage) > 0 {
		cobraCmd.Example = "  " + strings.Join(cb.ExampleUsage, "\n  ")
	}

	return cobraCmd
}
