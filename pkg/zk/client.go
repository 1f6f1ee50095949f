package zk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	szk "github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"
)

// ErrReadOnly is returned by write operations on a read-only client.
var ErrReadOnly = errors.New("Cannot write to zookeeper in read-only mode")

// Client is the subset of zookeeper operations needed to read a cluster's assignment and
// to submit reassignments. Unlike the underlying samuel zk client, all calls take a
// context.
type Client interface {
	Get(ctx context.Context, path string) ([]byte, *szk.Stat, error)
	GetJSON(ctx context.Context, path string, obj interface{}) (*szk.Stat, error)
	Children(ctx context.Context, path string) ([]string, *szk.Stat, error)
	Exists(ctx context.Context, path string) (bool, *szk.Stat, error)

	CreateJSON(ctx context.Context, path string, obj interface{}) error
	Delete(ctx context.Context, path string, version int32) error

	AcquireLock(ctx context.Context, path string) (Lock, error)

	Close() error
}

var _ Client = (*PooledClient)(nil)

// ClientConfig contains the settings for a PooledClient.
type ClientConfig struct {
	Addrs []string

	// Prefix is prepended to every path, for clusters that keep their state under a
	// chroot.
	Prefix string

	// PoolSize is the number of connections used for reads. Defaults to 1.
	PoolSize int

	SessionTimeout time.Duration
	ReadOnly       bool
}

type zkOp func(conn *szk.Conn) zkResult

type zkResult struct {
	data     []byte
	children []string
	exists   bool
	stat     *szk.Stat
	err      error
}

type zkRequest struct {
	op       zkOp
	respChan chan zkResult
}

// PooledClient is a Client that spreads reads over a pool of connections. Fetching the
// state of every topic in a large cluster means thousands of gets, so this is
// substantially faster than a single connection.
//
// Writes and locks always go through the first connection.
type PooledClient struct {
	prefix      string
	readOnly    bool
	connections []*szk.Conn
	requestChan chan zkRequest
}

// NewPooledClient connects to zookeeper and starts one worker per pooled connection.
func NewPooledClient(config ClientConfig) (*PooledClient, error) {
	if len(config.Addrs) == 0 {
		return nil, errors.New("At least one zookeeper address is required")
	}

	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	sessionTimeout := config.SessionTimeout
	if sessionTimeout <= 0 {
		sessionTimeout = time.Minute
	}

	log.Debugf(
		"Creating zk client with addresses %+v, prefix %q, pool size %d",
		config.Addrs,
		config.Prefix,
		poolSize,
	)

	client := &PooledClient{
		prefix:      normalizePrefix(config.Prefix),
		readOnly:    config.ReadOnly,
		requestChan: make(chan zkRequest),
	}

	for i := 0; i < poolSize; i++ {
		conn, _, err := szk.Connect(
			config.Addrs,
			sessionTimeout,
			szk.WithLogger(&DebugLogger{}),
		)
		if err != nil {
			client.closeConnections()
			return nil, fmt.Errorf(
				"Error connecting to zookeeper at %+v: %+v",
				config.Addrs,
				err,
			)
		}
		client.connections = append(client.connections, conn)
	}

	for index, conn := range client.connections {
		go client.worker(index, conn)
	}

	return client, nil
}

func (c *PooledClient) worker(index int, conn *szk.Conn) {
	log.Debugf("Starting zk connection worker %d", index)

	for request := range c.requestChan {
		request.respChan <- request.op(conn)
	}
}

// do runs the argument operation on the next free pooled connection.
func (c *PooledClient) do(ctx context.Context, op zkOp) zkResult {
	// Buffered so that the worker never blocks if the caller has given up.
	respChan := make(chan zkResult, 1)

	select {
	case c.requestChan <- zkRequest{op: op, respChan: respChan}:
	case <-ctx.Done():
		return zkResult{err: ctx.Err()}
	}

	select {
	case resp := <-respChan:
		return resp
	case <-ctx.Done():
		return zkResult{err: ctx.Err()}
	}
}

// doWrite runs the argument operation on the primary connection.
func (c *PooledClient) doWrite(ctx context.Context, op zkOp) zkResult {
	if c.readOnly {
		return zkResult{err: ErrReadOnly}
	}

	respChan := make(chan zkResult, 1)
	go func() {
		respChan <- op(c.connections[0])
	}()

	select {
	case resp := <-respChan:
		return resp
	case <-ctx.Done():
		return zkResult{err: ctx.Err()}
	}
}

// Get returns the contents of the node at the argument path.
func (c *PooledClient) Get(ctx context.Context, nodePath string) ([]byte, *szk.Stat, error) {
	fullPath := c.fullPath(nodePath)
	log.Debugf("Getting path %s", fullPath)

	resp := c.do(ctx, func(conn *szk.Conn) zkResult {
		data, stat, err := conn.Get(fullPath)
		return zkResult{data: data, stat: stat, err: err}
	})
	return resp.data, resp.stat, resp.err
}

// GetJSON unmarshals the JSON contents of the node at the argument path into obj.
func (c *PooledClient) GetJSON(
	ctx context.Context,
	nodePath string,
	obj interface{},
) (*szk.Stat, error) {
	data, stat, err := c.Get(ctx, nodePath)
	if err != nil {
		return stat, err
	}

	if err := json.Unmarshal(data, obj); err != nil {
		return stat, fmt.Errorf("Error parsing contents of %s: %+v", nodePath, err)
	}
	return stat, nil
}

// Children returns the names of the children of the node at the argument path.
func (c *PooledClient) Children(
	ctx context.Context,
	nodePath string,
) ([]string, *szk.Stat, error) {
	fullPath := c.fullPath(nodePath)
	log.Debugf("Getting children of %s", fullPath)

	resp := c.do(ctx, func(conn *szk.Conn) zkResult {
		children, stat, err := conn.Children(fullPath)
		return zkResult{children: children, stat: stat, err: err}
	})
	return resp.children, resp.stat, resp.err
}

// Exists returns whether there's a node at the argument path.
func (c *PooledClient) Exists(ctx context.Context, nodePath string) (bool, *szk.Stat, error) {
	fullPath := c.fullPath(nodePath)

	resp := c.do(ctx, func(conn *szk.Conn) zkResult {
		exists, stat, err := conn.Exists(fullPath)
		return zkResult{exists: exists, stat: stat, err: err}
	})
	return resp.exists, resp.stat, resp.err
}

// CreateJSON creates a persistent node at the argument path containing the JSON
// encoding of obj.
func (c *PooledClient) CreateJSON(ctx context.Context, nodePath string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	fullPath := c.fullPath(nodePath)
	log.Debugf("Creating node %s", fullPath)

	resp := c.doWrite(ctx, func(conn *szk.Conn) zkResult {
		_, err := conn.Create(fullPath, data, 0, szk.WorldACL(szk.PermAll))
		return zkResult{err: err}
	})
	return resp.err
}

// Delete removes the node at the argument path. A version of -1 matches any version.
func (c *PooledClient) Delete(ctx context.Context, nodePath string, version int32) error {
	fullPath := c.fullPath(nodePath)
	log.Debugf("Deleting node %s", fullPath)

	resp := c.doWrite(ctx, func(conn *szk.Conn) zkResult {
		return zkResult{err: conn.Delete(fullPath, version)}
	})
	return resp.err
}

// AcquireLock blocks until the lock at the argument path is held or ctx is done.
func (c *PooledClient) AcquireLock(ctx context.Context, lockPath string) (Lock, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}

	fullPath := c.fullPath(lockPath)
	log.Debugf("Acquiring lock at %s", fullPath)

	lock := szk.NewLock(c.connections[0], fullPath, szk.WorldACL(szk.PermAll))
	errChan := make(chan error, 1)

	go func() {
		errChan <- lock.Lock()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return nil, err
		}
		return lock, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers and closes all connections.
func (c *PooledClient) Close() error {
	close(c.requestChan)
	c.closeConnections()
	return nil
}

func (c *PooledClient) closeConnections() {
	for index, conn := range c.connections {
		log.Debugf("Closing zk connection %d/%d", index+1, len(c.connections))
		conn.Close()
	}
}

func (c *PooledClient) fullPath(nodePath string) string {
	if c.prefix == "" {
		return nodePath
	}
	return path.Join(c.prefix, nodePath)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// IsNoNode returns whether the argument error means that a node doesn't exist.
func IsNoNode(err error) bool {
	return errors.Is(err, szk.ErrNoNode)
}
