package main

import (
	"os"

	"github.com/dshills/amber/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
