package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

// affinity is carried in ProducerMessage.Metadata to tell the partitioner how
// the message was routed.
type affinity struct {
	partitionID int32
	explicit    bool
}

// routePartitioner picks partitions per message: explicit ids are used as given,
// keyed messages are hashed and the rest are spread round-robin.
type routePartitioner struct {
	hash       sarama.Partitioner
	roundRobin sarama.Partitioner
}

func newRoutePartitioner(topic string) sarama.Partitioner {
	return &routePartitioner{
		hash:       sarama.NewHashPartitioner(topic),
		roundRobin: sarama.NewRoundRobinPartitioner(topic),
	}
}

func (p *routePartitioner) Partition(msg *sarama.ProducerMessage, numPartitions int32) (int32, error) {
	if a, ok := msg.Metadata.(affinity); ok && a.explicit {
		if a.partitionID < 0 || a.partitionID >= numPartitions {
			return -1, fmt.Errorf("partition %d out of range [0, %d)", a.partitionID, numPartitions)
		}
		return a.partitionID, nil
	}

	if msg.Key != nil {
		return p.hash.Partition(msg, numPartitions)
	}

	return p.roundRobin.Partition(msg, numPartitions)
}

func (p *routePartitioner) RequiresConsistency() bool {
	return true
}
