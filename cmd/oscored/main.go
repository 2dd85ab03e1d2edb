package main

import (
	"os"

	"github.com/TheusHen/oscore/cmd/oscored/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
