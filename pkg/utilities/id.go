package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewRequestID returns a sortable id for correlating one request's logs.
func NewRequestID() string {
	return NewKSUID()
}

var (
	nodeOnce    sync.Once
	defaultNode *snowflake.Node
	nodeErr     error
)

// NodeFromEnv returns the process-wide snowflake node for SNOWFLAKE_NODE
// (node 1 when unset or unparsable). The node is built once; snowflake ids
// are only unique when every generator shares it.
func NodeFromEnv() (*snowflake.Node, error) {
	nodeOnce.Do(func() {
		id := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			id = v
		}
		defaultNode, nodeErr = NewNode(id)
	})
	return defaultNode, nodeErr
}

// NewNode builds a snowflake node for nodeID.
func NewNode(nodeID int64) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "snowflake node %d", nodeID)
	}
	return node, nil
}
