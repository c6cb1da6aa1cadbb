package sparkcluster

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-units"
)

// DefaultImage is the Spark image used for master and workers.
const DefaultImage = "bitnami/spark:3.5"

// ClusterSpec sizes one provisioned cluster.
type ClusterSpec struct {
	Name           string
	NumWorkers     int
	MemPerWorkerGB int
	CoresPerWorker int
	Image          string
}

// Cluster is a provisioned Spark master plus workers on a dedicated bridge
// network.
type Cluster struct {
	client    *Client
	networkID string

	Name      string
	MasterID  string
	WorkerIDs []string
	// MasterURL is the spark:// address reachable from the workers and from
	// spark-submit jobs joined to the cluster network.
	MasterURL string
}

// Provision starts a master container and spec.NumWorkers worker containers,
// each limited to the configured memory and cores. On any failure the partial
// cluster is torn down before returning.
func (c *Client) Provision(ctx context.Context, spec ClusterSpec) (*Cluster, error) {
	image := spec.Image
	if image == "" {
		image = DefaultImage
	}
	masterName := spec.Name + "-master"

	netResp, err := c.docker.NetworkCreate(ctx, spec.Name, network.CreateOptions{
		Labels: map[string]string{labelPrefix + "cluster": spec.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("creating cluster network: %w", err)
	}

	cl := &Cluster{
		client:    c,
		networkID: netResp.ID,
		Name:      spec.Name,
		MasterURL: fmt.Sprintf("spark://%s:7077", masterName),
	}

	memBytes, err := units.RAMInBytes(fmt.Sprintf("%dg", spec.MemPerWorkerGB))
	if err != nil {
		cl.Teardown(ctx)
		return nil, fmt.Errorf("parsing worker memory: %w", err)
	}

	masterID, err := c.startContainer(ctx, image, masterName, spec.Name, []string{
		"SPARK_MODE=master",
		"SPARK_MASTER_HOST=" + masterName,
	}, container.Resources{})
	if err != nil {
		cl.Teardown(ctx)
		return nil, fmt.Errorf("starting master: %w", err)
	}
	cl.MasterID = masterID

	for i := 0; i < spec.NumWorkers; i++ {
		workerName := fmt.Sprintf("%s-worker-%d", spec.Name, i)
		workerID, err := c.startContainer(ctx, image, workerName, spec.Name, []string{
			"SPARK_MODE=worker",
			"SPARK_MASTER_URL=" + cl.MasterURL,
			fmt.Sprintf("SPARK_WORKER_MEMORY=%dg", spec.MemPerWorkerGB),
			fmt.Sprintf("SPARK_WORKER_CORES=%d", spec.CoresPerWorker),
		}, container.Resources{
			Memory:   memBytes,
			NanoCPUs: int64(spec.CoresPerWorker) * 1e9,
		})
		if err != nil {
			cl.Teardown(ctx)
			return nil, fmt.Errorf("starting worker %d: %w", i, err)
		}
		cl.WorkerIDs = append(cl.WorkerIDs, workerID)
	}

	return cl, nil
}

func (c *Client) startContainer(ctx context.Context, image, name, networkName string, env []string, resources container.Resources) (string, error) {
	resp, err := c.docker.ContainerCreate(ctx,
		&container.Config{
			Image: image,
			Env:   env,
			Labels: map[string]string{
				labelPrefix + "cluster": networkName,
				labelPrefix + "managed": "true",
			},
		},
		&container.HostConfig{
			Resources:   resources,
			NetworkMode: container.NetworkMode(networkName),
		},
		nil, nil, name,
	)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}
	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		c.docker.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("container start: %w", err)
	}
	return resp.ID, nil
}

// Teardown force-removes every cluster container and the network. Removal
// errors are collected; the first one is returned after everything has been
// attempted.
func (cl *Cluster) Teardown(ctx context.Context) error {
	var firstErr error
	ids := append([]string{}, cl.WorkerIDs...)
	if cl.MasterID != "" {
		ids = append(ids, cl.MasterID)
	}
	for _, id := range ids {
		err := cl.client.docker.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("removing container %s: %w", id, err)
		}
	}
	if cl.networkID != "" {
		if err := cl.client.docker.NetworkRemove(ctx, cl.networkID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("removing network: %w", err)
		}
	}
	return firstErr
}
