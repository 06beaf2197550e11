// internal/bus/nats.go
package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of Client the CLI depends on.
type Publisher interface {
	PublishJSON(subject string, v any) error
	Close()
}

type Client struct{ nc *nats.Conn }

func Connect(url, name string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(3),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// PublishJSON publishes v and waits for the server to acknowledge it, since
// the process usually exits right after.
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(subject, b); err != nil {
		return err
	}
	return c.nc.FlushTimeout(5 * time.Second)
}
