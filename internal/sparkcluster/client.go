// Package sparkcluster provisions single-master Spark clusters as Docker
// containers and builds compute sessions that submit the data-cleaning job to
// them. It is the in-process alternative to the lifecycle shell script for
// one-off runs.
package sparkcluster

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

const labelPrefix = "sparkbench."

// Client wraps the Docker API client.
type Client struct {
	docker *client.Client
}

func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{docker: cli}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}
