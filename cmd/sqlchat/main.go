package main

import (
	"os"

	"github.com/wwwzy/SQLChatAgent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
