package main

import (
	"github.com/robotalks/bebe.go/pkg/cli/sh"
	env "github.com/robotalks/bebe.go/pkg/remote/env/connector"

	_ "github.com/robotalks/bebe.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
