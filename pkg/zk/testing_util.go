package zk

import (
	"encoding/json"
	"path"
	"testing"
	"time"

	szk "github.com/samuel/go-zookeeper/zk"
	"github.com/segmentio/rebalancectl/pkg/util"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestNode is a path and the object whose JSON encoding is stored there. For testing
// purposes only.
type TestNode struct {
	Path string
	Obj  interface{}
}

// TestConn connects directly to the test zookeeper, skipping the test if there isn't
// one. For testing purposes only.
func TestConn(t *testing.T) *szk.Conn {
	if !util.CanTestZK() {
		t.Skip("Skipping because REBALANCECTL_TEST_ZK_ADDR is not set")
	}

	conn, _, err := szk.Connect(
		[]string{util.TestZKAddr()},
		5*time.Second,
		szk.WithLogger(&DebugLogger{}),
	)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	return conn
}

// CreateTestNodes creates the argument nodes under root, along with any missing parents.
// For testing purposes only.
func CreateTestNodes(t *testing.T, conn *szk.Conn, root string, nodes []TestNode) {
	for _, node := range nodes {
		fullPath := path.Join(root, node.Path)
		createParents(t, conn, fullPath)

		var data []byte
		if node.Obj != nil {
			var err error
			data, err = json.Marshal(node.Obj)
			require.NoError(t, err)
		}

		log.Debugf("Creating test node %s", fullPath)
		_, err := conn.Create(fullPath, data, 0, szk.WorldACL(szk.PermAll))
		require.NoError(t, err)
	}
}

func createParents(t *testing.T, conn *szk.Conn, fullPath string) {
	parent := path.Dir(fullPath)
	if parent == "/" || parent == "." {
		return
	}

	exists, _, err := conn.Exists(parent)
	require.NoError(t, err)
	if exists {
		return
	}

	createParents(t, conn, parent)
	_, err = conn.Create(parent, nil, 0, szk.WorldACL(szk.PermAll))
	if err != nil && err != szk.ErrNodeExists {
		require.NoError(t, err)
	}
}
