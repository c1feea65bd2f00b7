package main

import (
	"os"

	"github.com/aman-zulfiqar/dex-ai-gateway/cmd/dexctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
