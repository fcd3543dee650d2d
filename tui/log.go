package tui

import (
	"github.com/mempooledit/mempooledit/infrastructure/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.TUI)
