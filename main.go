package main

import (
	"os"

	"stockpilot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
