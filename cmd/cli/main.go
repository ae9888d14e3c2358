package main

import (
	"os"

	"tabserve/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
