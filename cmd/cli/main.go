package main

import (
	"os"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
