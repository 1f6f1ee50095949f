package zk

import (
	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
)

// DebugLogger routes the samuel zk library's connection chatter to logrus at the
// debug level.
type DebugLogger struct{}

var _ szk.Logger = (*DebugLogger)(nil)

// Printf implements szk.Logger.
func (l *DebugLogger) Printf(format string, args ...interface{}) {
	log.WithField("component", "zookeeper").Debugf(format, args...)
}
