package topology

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/segmentio/rebalancectl/pkg/admin"
	"github.com/segmentio/rebalancectl/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBrokers returns brokers 1..numBrokers spread round-robin over racks zone1..zoneN.
func testBrokers(numBrokers int, numRacks int) map[int]*admin.BrokerInfo {
	brokers := map[int]*admin.BrokerInfo{}

	for b := 0; b < numBrokers; b++ {
		brokers[b+1] = &admin.BrokerInfo{
			ID:   b + 1,
			Rack: fmt.Sprintf("zone%d", (b%numRacks)+1),
		}
	}

	return brokers
}

// testRackBrokers returns brokers assigned explicitly to racks.
func testRackBrokers(racks map[string][]int) map[int]*admin.BrokerInfo {
	brokers := map[int]*admin.BrokerInfo{}

	for rack, ids := range racks {
		for _, id := range ids {
			brokers[id] = &admin.BrokerInfo{ID: id, Rack: rack}
		}
	}

	return brokers
}

func rackGroup(broker *Broker) string {
	if broker.Metadata() == nil {
		return ""
	}
	return broker.Metadata().Rack
}

// testAssignment builds an assignment for a single topic where partition i has the
// replicas in replicas[i].
func testAssignment(topic string, replicas [][]int) admin.ClusterAssignment {
	assignment := admin.ClusterAssignment{}

	for p, partitionReplicas := range replicas {
		assignment[admin.TopicPartition{Topic: topic, Partition: p}] =
			util.CopyInts(partitionReplicas)
	}

	return assignment
}

// randomAssignment returns a deterministic pseudo-random assignment over brokers
// 1..numBrokers.
func randomAssignment(
	seed int64,
	numTopics int,
	numPartitions int,
	replicationFactor int,
	numBrokers int,
) admin.ClusterAssignment {
	random := rand.New(rand.NewSource(seed))
	assignment := admin.ClusterAssignment{}

	for t := 0; t < numTopics; t++ {
		topic := fmt.Sprintf("topic%d", t)

		for p := 0; p < numPartitions; p++ {
			replicas := []int{}
			for _, index := range random.Perm(numBrokers)[:replicationFactor] {
				replicas = append(replicas, index+1)
			}
			assignment[admin.TopicPartition{Topic: topic, Partition: p}] = replicas
		}
	}

	return assignment
}

func assignmentReplicas(assignments []admin.ReplicaAssignment) [][]int {
	replicas := [][]int{}
	for _, assignment := range assignments {
		replicas = append(replicas, assignment.Replicas)
	}
	return replicas
}

// checkInvariants verifies that after contains exactly the partitions in before, with
// the same replication factors and no repeated replicas, and that the replication
// groups account for every replica.
func checkInvariants(
	t *testing.T,
	ct *ClusterTopology,
	before []admin.ReplicaAssignment,
	description string,
) {
	after := ct.Assignment()
	require.Equal(t, len(before), len(after), description)

	for a := range after {
		assert.Equal(
			t,
			before[a].TopicPartition(),
			after[a].TopicPartition(),
			description,
		)
		assert.Equal(
			t,
			len(before[a].Replicas),
			len(after[a].Replicas),
			description,
		)
		assert.False(t, util.HasRepeats(after[a].Replicas), description)
	}

	for _, partition := range ct.Partitions() {
		sum := 0
		for _, group := range ct.ReplicationGroups() {
			sum += group.CountReplica(partition)
		}
		assert.Equal(t, partition.ReplicationFactor(), sum, description)
	}

	totalReplicas := 0
	for _, broker := range ct.Brokers() {
		totalReplicas += broker.NumPartitions()
		for _, partition := range broker.Partitions() {
			assert.Contains(t, partition.ReplicaIDs(), broker.ID(), description)
		}
	}
	assert.Equal(t, len(ct.PartitionReplicas()), totalReplicas, description)
}
