package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID returns a time-ordered, URL-safe id.
func NewKSUID() string {
	return ksuid.New().String()
}

// nodes holds one generator per node id so sequence numbers keep
// advancing across calls.
var nodes sync.Map

// NewSnowflakeID returns an id from the node named by SNOWFLAKE_NODE,
// node 1 when unset or unparsable.
func NewSnowflakeID() string {
	node, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64)
	if err != nil {
		node = 1
	}
	return NewSnowflakeIDWithNode(node)
}

// NewSnowflakeIDWithNode returns an id from the given node. Node ids out of
// the snowflake range yield a KSUID.
func NewSnowflakeIDWithNode(node int64) string {
	n, ok := nodes.Load(node)
	if !ok {
		sf, err := snowflake.NewNode(node)
		if err != nil {
			return NewKSUID()
		}
		n, _ = nodes.LoadOrStore(node, sf)
	}
	return n.(*snowflake.Node).Generate().String()
}
