package zk

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	szk "github.com/samuel/go-zookeeper/zk"
)

// MemoryClient is an in-memory Client. Nodes are stored by full path and parents are
// implicit. For testing purposes only.
type MemoryClient struct {
	sync.Mutex

	nodes map[string][]byte
	locks map[string]bool
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient returns a MemoryClient containing the JSON encodings of the argument
// nodes.
func NewMemoryClient(nodes []TestNode) (*MemoryClient, error) {
	client := &MemoryClient{
		nodes: map[string][]byte{},
		locks: map[string]bool{},
	}

	for _, node := range nodes {
		if err := client.CreateJSON(context.Background(), node.Path, node.Obj); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// Get returns the contents of the node at the argument path.
func (c *MemoryClient) Get(ctx context.Context, nodePath string) ([]byte, *szk.Stat, error) {
	c.Lock()
	defer c.Unlock()

	data, ok := c.nodes[path.Clean(nodePath)]
	if !ok {
		return nil, nil, szk.ErrNoNode
	}
	return data, &szk.Stat{DataLength: int32(len(data))}, nil
}

// GetJSON unmarshals the JSON contents of the node at the argument path into obj.
func (c *MemoryClient) GetJSON(ctx context.Context, nodePath string, obj interface{}) (*szk.Stat, error) {
	data, stat, err := c.Get(ctx, nodePath)
	if err != nil {
		return stat, err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return stat, fmt.Errorf("Error parsing contents of %s: %+v", nodePath, err)
	}
	return stat, nil
}

// Children returns the sorted names of the direct children of the argument path.
func (c *MemoryClient) Children(ctx context.Context, nodePath string) ([]string, *szk.Stat, error) {
	c.Lock()
	defer c.Unlock()

	prefix := strings.TrimSuffix(path.Clean(nodePath), "/") + "/"
	childSet := map[string]struct{}{}
	found := false

	for nodeKey := range c.nodes {
		if nodeKey == path.Clean(nodePath) {
			found = true
		}
		if !strings.HasPrefix(nodeKey, prefix) {
			continue
		}
		found = true
		childSet[strings.SplitN(strings.TrimPrefix(nodeKey, prefix), "/", 2)[0]] = struct{}{}
	}
	if !found {
		return nil, nil, szk.ErrNoNode
	}

	children := []string{}
	for child := range childSet {
		children = append(children, child)
	}
	sort.Strings(children)

	return children, &szk.Stat{NumChildren: int32(len(children))}, nil
}

// Exists returns whether there's a node at the argument path.
func (c *MemoryClient) Exists(ctx context.Context, nodePath string) (bool, *szk.Stat, error) {
	c.Lock()
	defer c.Unlock()

	_, ok := c.nodes[path.Clean(nodePath)]
	return ok, &szk.Stat{}, nil
}

// CreateJSON stores the JSON encoding of obj at the argument path.
func (c *MemoryClient) CreateJSON(ctx context.Context, nodePath string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	nodeKey := path.Clean(nodePath)
	if _, ok := c.nodes[nodeKey]; ok {
		return szk.ErrNodeExists
	}
	c.nodes[nodeKey] = data
	return nil
}

// Delete removes the node at the argument path; versions are ignored.
func (c *MemoryClient) Delete(ctx context.Context, nodePath string, version int32) error {
	c.Lock()
	defer c.Unlock()

	nodeKey := path.Clean(nodePath)
	if _, ok := c.nodes[nodeKey]; !ok {
		return szk.ErrNoNode
	}
	delete(c.nodes, nodeKey)
	return nil
}

// AcquireLock takes the lock at the argument path, failing if it's already held.
func (c *MemoryClient) AcquireLock(ctx context.Context, lockPath string) (Lock, error) {
	c.Lock()
	defer c.Unlock()

	lockKey := path.Clean(lockPath)
	if c.locks[lockKey] {
		return nil, fmt.Errorf("Lock %s is already held", lockKey)
	}
	c.locks[lockKey] = true

	return &memoryLock{client: c, path: lockKey}, nil
}

// Locked returns whether the lock at the argument path is held.
func (c *MemoryClient) Locked(lockPath string) bool {
	c.Lock()
	defer c.Unlock()
	return c.locks[path.Clean(lockPath)]
}

// Close is a no-op.
func (c *MemoryClient) Close() error {
	return nil
}

type memoryLock struct {
	client *MemoryClient
	path   string
}

func (l *memoryLock) Unlock() error {
	l.client.Lock()
	defer l.client.Unlock()
	delete(l.client.locks, l.path)
	return nil
}
