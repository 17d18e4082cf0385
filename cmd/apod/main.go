package main

import (
	"os"

	"apod_syncer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
