package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/rebalancectl/pkg/topology"
	"github.com/segmentio/rebalancectl/pkg/util"
)

// GroupingStrategy is the name of a way of mapping brokers to replication groups.
type GroupingStrategy string

const (
	// GroupingStrategyNone puts all brokers into a single group.
	GroupingStrategyNone GroupingStrategy = "none"

	// GroupingStrategyRack groups brokers by their broker.rack setting.
	GroupingStrategyRack GroupingStrategy = "rack"

	// GroupingStrategyAvailabilityZone groups brokers by the AWS availability zone of
	// their EC2 instance.
	GroupingStrategyAvailabilityZone GroupingStrategy = "availabilityZone"

	// GroupingStrategyHostPattern groups brokers by the first capture group of a regexp
	// applied to their host.
	GroupingStrategyHostPattern GroupingStrategy = "hostPattern"

	// GroupingStrategyStatic uses an explicit mapping of group to broker IDs.
	GroupingStrategyStatic GroupingStrategy = "static"
)

// GroupingConfig configures how brokers are mapped to replication groups.
type GroupingConfig struct {
	Strategy    GroupingStrategy `json:"strategy"`
	HostPattern string           `json:"hostPattern"`
	Static      map[string][]int `json:"static"`
}

// Validate evaluates whether the grouping config is valid.
func (g GroupingConfig) Validate() error {
	var err error

	switch g.Strategy {
	case "", GroupingStrategyNone, GroupingStrategyRack, GroupingStrategyAvailabilityZone:
	case GroupingStrategyHostPattern:
		pattern, compileErr := regexp.Compile(g.HostPattern)
		if compileErr != nil {
			err = multierror.Append(
				err,
				fmt.Errorf("Invalid host pattern: %+v", compileErr),
			)
		} else if pattern.NumSubexp() != 1 {
			err = multierror.Append(
				err,
				errors.New("Host pattern must have exactly one capture group"),
			)
		}
	case GroupingStrategyStatic:
		if len(g.Static) == 0 {
			err = multierror.Append(err, errors.New("Static groups must be set"))
		}
		seen := map[int]string{}
		for _, groupID := range util.SortedStringKeys(g.Static) {
			for _, brokerID := range g.Static[groupID] {
				if other, ok := seen[brokerID]; ok {
					err = multierror.Append(
						err,
						fmt.Errorf(
							"Broker %d is in both static groups %s and %s",
							brokerID,
							other,
							groupID,
						),
					)
				}
				seen[brokerID] = groupID
			}
		}
	default:
		err = multierror.Append(
			err,
			fmt.Errorf(
				"Unrecognized replication group strategy %q; choices are none, rack, availabilityZone, hostPattern, and static",
				g.Strategy,
			),
		)
	}

	return err
}

// NeedsInstanceLookup returns whether the broker metadata needs to be enriched with EC2
// instance information before the extractor can be used.
func (g GroupingConfig) NeedsInstanceLookup() bool {
	return g.Strategy == GroupingStrategyAvailabilityZone
}

// Extractor returns the function that maps brokers to replication group IDs. Brokers
// without metadata go into the unnamed group.
func (g GroupingConfig) Extractor() (topology.GroupExtractor, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	switch g.Strategy {
	case GroupingStrategyRack:
		return func(broker *topology.Broker) string {
			if broker.Metadata() == nil {
				return ""
			}
			return broker.Metadata().Rack
		}, nil
	case GroupingStrategyAvailabilityZone:
		return func(broker *topology.Broker) string {
			if broker.Metadata() == nil {
				return ""
			}
			return broker.Metadata().AvailabilityZone
		}, nil
	case GroupingStrategyHostPattern:
		pattern := regexp.MustCompile(g.HostPattern)
		return func(broker *topology.Broker) string {
			if broker.Metadata() == nil {
				return ""
			}
			matches := pattern.FindStringSubmatch(broker.Metadata().Host)
			if len(matches) != 2 {
				return ""
			}
			return matches[1]
		}, nil
	case GroupingStrategyStatic:
		brokerGroups := map[int]string{}
		for groupID, brokerIDs := range g.Static {
			for _, brokerID := range brokerIDs {
				brokerGroups[brokerID] = groupID
			}
		}
		return func(broker *topology.Broker) string {
			return brokerGroups[broker.ID()]
		}, nil
	default:
		return topology.DefaultGroup, nil
	}
}
