package commands

import (
	"fmt"
	"strings"

	"github.com/alan/repo-auditor/internal/checks"
)

// ParseCheckArg resolves the check named by the first argument
func ParseCheckArg(args []string) (checks.Check, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("check name is required (one of: %s)", strings.Join(checks.Keys(), ", "))
	}
	return checks.Lookup(args[0])
}
