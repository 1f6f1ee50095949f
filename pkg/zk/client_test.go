package zk

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/segmentio/rebalancectl/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix(t *testing.T) {
	type testCase struct {
		description string
		prefix      string
		expected    string
	}

	testCases := []testCase{
		{
			description: "Empty",
			prefix:      "",
			expected:    "",
		},
		{
			description: "Root",
			prefix:      "/",
			expected:    "",
		},
		{
			description: "Missing leading slash",
			prefix:      "kafka/cluster1",
			expected:    "/kafka/cluster1",
		},
		{
			description: "Trailing slash",
			prefix:      "/kafka/",
			expected:    "/kafka",
		},
	}

	for _, testCase := range testCases {
		assert.Equal(
			t,
			testCase.expected,
			normalizePrefix(testCase.prefix),
			testCase.description,
		)
	}
}

func TestPooledClientRead(t *testing.T) {
	conn := TestConn(t)
	root := "/" + util.RandomString("pooled-client-read", 6)

	nodes := []TestNode{}
	for i := 1; i <= 4; i++ {
		nodes = append(
			nodes,
			TestNode{
				Path: fmt.Sprintf("parent/child%d", i),
				Obj:  map[string]int{"value": i},
			},
			TestNode{
				Path: fmt.Sprintf("parent/child%d/subchild", i),
			},
		)
	}
	CreateTestNodes(t, conn, root, nodes)

	client, err := NewPooledClient(
		ClientConfig{
			Addrs:    []string{util.TestZKAddr()},
			Prefix:   root,
			PoolSize: 2,
			ReadOnly: true,
		},
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	children, _, err := client.Children(ctx, "/parent")
	require.NoError(t, err)
	sort.Strings(children)
	assert.Equal(t, []string{"child1", "child2", "child3", "child4"}, children)

	doneChan := make(chan struct{})
	for i := 1; i <= 4; i++ {
		go func(index int) {
			defer func() {
				doneChan <- struct{}{}
			}()

			value := map[string]int{}
			_, err := client.GetJSON(ctx, fmt.Sprintf("/parent/child%d", index), &value)
			assert.NoError(t, err)
			assert.Equal(t, map[string]int{"value": index}, value)
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-doneChan
	}

	exists, _, err := client.Exists(ctx, "/parent/child1/subchild")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, _, err = client.Exists(ctx, "/parent/child5")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = client.Get(ctx, "/parent/child5")
	assert.True(t, IsNoNode(err))

	err = client.CreateJSON(ctx, "/parent/child5", "value")
	assert.Equal(t, ErrReadOnly, err)

	_, err = client.AcquireLock(ctx, "/locks/test")
	assert.Equal(t, ErrReadOnly, err)
}

func TestPooledClientWrite(t *testing.T) {
	conn := TestConn(t)
	root := "/" + util.RandomString("pooled-client-write", 6)
	CreateTestNodes(t, conn, root, []TestNode{{Path: "admin"}})

	client, err := NewPooledClient(
		ClientConfig{
			Addrs:  []string{util.TestZKAddr()},
			Prefix: root,
		},
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(
		t,
		client.CreateJSON(ctx, "/admin/reassign_partitions", map[string]int{"version": 1}),
	)

	value := map[string]int{}
	_, err = client.GetJSON(ctx, "/admin/reassign_partitions", &value)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"version": 1}, value)

	require.NoError(t, client.Delete(ctx, "/admin/reassign_partitions", -1))
	exists, _, err := client.Exists(ctx, "/admin/reassign_partitions")
	require.NoError(t, err)
	assert.False(t, exists)

	lock, err := client.AcquireLock(ctx, "/locks/rebalance")
	require.NoError(t, err)
	ReleaseLock(lock)
}
