package main

import (
	"os"

	"github.com/lifedash/lifedash/internal/apiservice"
)

func main() {
	if err := apiservice.Run(); err != nil {
		os.Exit(1)
	}
}
