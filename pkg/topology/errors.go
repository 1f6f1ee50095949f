package topology

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// InvalidBrokerIDError is returned by DecommissionBrokers when one of the requested
// brokers isn't part of the cluster.
type InvalidBrokerIDError struct {
	ID int
}

func (e *InvalidBrokerIDError) Error() string {
	return fmt.Sprintf("Broker id %d does not exist in cluster", e.ID)
}

// GroupDecommissionError is returned by ReplicationGroup.RebalanceBrokers when the
// decommissioned brokers of the group can't be emptied using only the group's
// remaining brokers.
type GroupDecommissionError struct {
	GroupID string
	Brokers []int
}

func (e *GroupDecommissionError) Error() string {
	return fmt.Sprintf(
		"Cannot decommission brokers %+v within replication group %q",
		e.Brokers,
		e.GroupID,
	)
}

// EmptyReplicationGroupError is returned when a replication group has no brokers that
// are eligible to host partitions.
type EmptyReplicationGroupError struct {
	GroupID string
}

func (e *EmptyReplicationGroupError) Error() string {
	return fmt.Sprintf("No active brokers in replication group %q", e.GroupID)
}

// StuckBrokerError describes a decommissioned broker that still hosts partitions.
type StuckBrokerError struct {
	ID         int
	Partitions []string
}

func (e *StuckBrokerError) Error() string {
	return fmt.Sprintf("Broker %d still hosts partitions %v", e.ID, e.Partitions)
}

// BrokerDecommissionError is returned by DecommissionBrokers when one or more brokers
// still host partitions after being forced out of their replication group. It usually
// means the cluster doesn't have enough capacity left to absorb the removed brokers.
type BrokerDecommissionError struct {
	GroupID string

	// Err holds one StuckBrokerError per broker that couldn't be emptied.
	Err *multierror.Error
}

func (e *BrokerDecommissionError) Error() string {
	return fmt.Sprintf(
		"Broker decommission failed in replication group %q after force: %s",
		e.GroupID,
		e.Err.Error(),
	)
}

func (e *BrokerDecommissionError) Unwrap() error {
	return e.Err
}
