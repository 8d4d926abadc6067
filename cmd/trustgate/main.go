package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/trustgate-dev/trustgate/internal/cli"
)

func main() {
	err := cli.Execute()
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrChecksFailed):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}
