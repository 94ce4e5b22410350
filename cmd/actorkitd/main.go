package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	color.NoColor = false

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
