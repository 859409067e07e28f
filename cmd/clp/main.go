package main

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/clip.cheap/internal/clp/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
