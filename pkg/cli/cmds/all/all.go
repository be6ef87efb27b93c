// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/bebe.go/pkg/cli/cmds/mem"
)
