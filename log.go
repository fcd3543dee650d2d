package main

import (
	"fmt"
	"os"

	"github.com/mempooledit/mempooledit/infrastructure/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.MPED)

func initLog(logFile, errLogFile string) {
	err := logger.InitLog(logFile, errLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %+v\n", err)
		os.Exit(1)
	}
}
