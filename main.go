package main

import (
	"tessera/cmd/cmd"
	"tessera/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
