package main

import (
	"os"

	"github.com/G1P0/vkomment/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
