package main

import (
	"fmt"
	"os"

	"github.com/odpf/priest/cmd"
)

func main() {
	command := cmd.New()
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err.Error())
		os.Exit(1)
	}
}
