package edhoc

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// nopLogger is used when Run is not given a logger,
// for a caller that doesn't care about log output.
var nopLogger = log.NewNopLogger()

func logDebug(logger log.Logger, keyvals ...interface{}) {
	level.Debug(logger).Log(keyvals...)
}

func logError(logger log.Logger, keyvals ...interface{}) {
	level.Error(logger).Log(keyvals...)
}
