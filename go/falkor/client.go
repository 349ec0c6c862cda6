// Package falkor speaks to FalkorDB over its Redis protocol and renders the
// loader's batched graph statements. Statements are submitted with GRAPH.QUERY
// against a single configured graph.
package falkor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Executor runs one graph statement. It is the seam between statement
// construction and the wire, and what tests fake.
type Executor interface {
	Query(ctx context.Context, statement string) error
}

// Client is a connection to one FalkorDB graph.
type Client struct {
	rdb   *redis.Client
	graph string
}

// Dial connects to the configured endpoint and verifies it with a ping.
func Dial(ctx context.Context, cfg *config.FalkorConfig) (*Client, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	var rdb = redis.NewClient(opts)
	if err = rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to falkordb at %s: %w", cfg.Endpoint, err)
	}
	log.WithFields(log.Fields{
		"endpoint": cfg.Endpoint,
		"graph":    cfg.Graph,
	}).Info("connected to FalkorDB")
	return &Client{rdb: rdb, graph: cfg.Graph}, nil
}

// clientOptions maps the configured endpoint onto go-redis options.
// falkor:// and falkors:// are aliases of redis:// and rediss://, and a bare
// host:port is taken as a plain connection.
func clientOptions(cfg *config.FalkorConfig) (*redis.Options, error) {
	var endpoint = cfg.Endpoint
	switch {
	case strings.HasPrefix(endpoint, "falkors://"):
		endpoint = "rediss://" + strings.TrimPrefix(endpoint, "falkors://")
	case strings.HasPrefix(endpoint, "falkor://"):
		endpoint = "redis://" + strings.TrimPrefix(endpoint, "falkor://")
	case !strings.Contains(endpoint, "://"):
		endpoint = "redis://" + endpoint
	}
	opts, err := redis.ParseURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing falkordb endpoint %q: %w", cfg.Endpoint, err)
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.QueryTimeoutMS > 0 {
		opts.ReadTimeout = time.Duration(cfg.QueryTimeoutMS) * time.Millisecond
	}
	return opts, nil
}

// Query submits one statement and discards its result set.
func (c *Client) Query(ctx context.Context, statement string) error {
	return c.rdb.Do(ctx, "GRAPH.QUERY", c.graph, statement).Err()
}

// QueryScalar submits one statement and returns the first cell of its first
// result row. ok is false when the query matched nothing.
func (c *Client) QueryScalar(ctx context.Context, statement string) (value interface{}, ok bool, err error) {
	reply, err := c.rdb.Do(ctx, "GRAPH.QUERY", c.graph, statement).Result()
	if err != nil {
		return nil, false, err
	}
	return scalarFromReply(reply)
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// scalarFromReply digs the first cell out of a GRAPH.QUERY reply. A reply
// with a result set is a three-element array of header, rows and statistics;
// each row is itself an array of cells.
func scalarFromReply(reply interface{}) (interface{}, bool, error) {
	sections, ok := reply.([]interface{})
	if !ok || len(sections) < 2 {
		return nil, false, fmt.Errorf("unexpected GRAPH.QUERY reply of type %T", reply)
	}
	rows, ok := sections[1].([]interface{})
	if !ok {
		return nil, false, fmt.Errorf("unexpected GRAPH.QUERY result section of type %T", sections[1])
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	cells, ok := rows[0].([]interface{})
	if !ok || len(cells) == 0 {
		return nil, false, fmt.Errorf("unexpected GRAPH.QUERY row of type %T", rows[0])
	}
	return cells[0], true, nil
}
