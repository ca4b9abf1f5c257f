package main

import (
	"os"

	"github.com/lifedash/lifedash/internal/syncworker"
)

func main() {
	if err := syncworker.Run(); err != nil {
		os.Exit(1)
	}
}
