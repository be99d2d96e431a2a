package main

import (
	"os"

	"github.com/wardenhq/warden/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
