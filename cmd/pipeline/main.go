package main

import (
	"os"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
)

func main() {
	logger.Init()
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
