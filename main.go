package main

import (
	"os"

	"snapset/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
