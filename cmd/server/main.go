package main

import (
	"os"

	"github.com/dmitrijs2005/eventcheckin/internal/buildinfo"
	"github.com/dmitrijs2005/eventcheckin/internal/server"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)
	os.Exit(server.Main())
}
