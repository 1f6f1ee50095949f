package zk

import (
	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
)

// Lock is a held zookeeper lock.
type Lock interface {
	Unlock() error
}

var _ Lock = (*szk.Lock)(nil)

// ReleaseLock unlocks the argument lock, logging instead of failing on errors. It's
// meant to be deferred right after a successful AcquireLock.
func ReleaseLock(lock Lock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil {
		log.Warnf("Error releasing zookeeper lock: %+v", err)
	}
}
