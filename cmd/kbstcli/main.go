package main

import (
	"github.com/kubisat/flight.go/pkg/cli/sh"

	_ "github.com/kubisat/flight.go/pkg/cli/cmds/kbst"
)

//go-build: CGO_ENABLED=0

func init() {
	sh.SetupFlags()
}

func main() {
	sh.Main()
}
