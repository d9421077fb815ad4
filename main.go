package main

import (
	"os"

	"mytodos/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
