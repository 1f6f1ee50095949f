package admin

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	log "github.com/sirupsen/logrus"
)

// EC2Client is the subset of the EC2 API used to look up broker instances.
type EC2Client interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2.DescribeInstancesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInstancesOutput, error)
}

var _ EC2Client = (*ec2.Client)(nil)

// NewEC2Client returns an EC2 client for the argument AWS config.
func NewEC2Client(awsCfg aws.Config) *ec2.Client {
	return ec2.NewFromConfig(awsCfg)
}

// LookupAvailabilityZones fills in the instance ID, instance type, and availability
// zone of each broker by matching the broker hosts against the private IPs of EC2
// instances. Brokers that don't match any instance are left unchanged.
func LookupAvailabilityZones(
	ctx context.Context,
	client EC2Client,
	brokers []BrokerInfo,
) error {
	if len(brokers) == 0 {
		return nil
	}

	hosts := map[string]struct{}{}
	values := []string{}
	for _, broker := range brokers {
		if _, ok := hosts[broker.Host]; ok || broker.Host == "" {
			continue
		}
		hosts[broker.Host] = struct{}{}
		values = append(values, broker.Host)
	}

	instances := map[string]types.Instance{}

	paginator := ec2.NewDescribeInstancesPaginator(
		client,
		&ec2.DescribeInstancesInput{
			Filters: []types.Filter{
				{
					Name:   aws.String("private-ip-address"),
					Values: values,
				},
			},
		},
	)

	for paginator.HasMorePages() {
		resp, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("Error describing EC2 instances: %+v", err)
		}

		for _, reservation := range resp.Reservations {
			for _, instance := range reservation.Instances {
				for _, networkInterface := range instance.NetworkInterfaces {
					privateIP := aws.ToString(networkInterface.PrivateIpAddress)
					if _, ok := hosts[privateIP]; ok {
						instances[privateIP] = instance
					}
				}
			}
		}
	}

	for b := range brokers {
		instance, ok := instances[brokers[b].Host]
		if !ok {
			log.Debugf("No EC2 instance found for broker %d (%s)", brokers[b].ID, brokers[b].Host)
			continue
		}

		brokers[b].InstanceID = aws.ToString(instance.InstanceId)
		brokers[b].InstanceType = string(instance.InstanceType)
		if instance.Placement != nil {
			brokers[b].AvailabilityZone = aws.ToString(instance.Placement.AvailabilityZone)
		}
	}

	return nil
}
