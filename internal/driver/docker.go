package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// ProjectLabel is the compose label carrying the project name.
const ProjectLabel = "com.docker.compose.project"

// ContainerStatus describes one container of a deployed kard.
type ContainerStatus struct {
	Name   string
	Image  string
	State  string
	Status string
}

// DockerClient wraps the Docker SDK for the status command. The
// composition pipeline itself never talks to the daemon.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient connects to the daemon using the standard
// environment variables (DOCKER_HOST and friends).
func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerClient{cli: cli}, nil
}

// Ping tests the connection to the daemon.
func (c *DockerClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker: %w", err)
	}
	return nil
}

// Ps lists the containers belonging to the given compose project,
// stopped ones included, sorted by name.
func (c *DockerClient) Ps(ctx context.Context, project string) ([]ContainerStatus, error) {
	list, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ProjectLabel+"="+project)),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers for project %s: %w", project, err)
	}

	statuses := make([]ContainerStatus, 0, len(list))
	for _, ctr := range list {
		name := ctr.ID[:12]
		if len(ctr.Names) > 0 {
			name = strings.TrimPrefix(ctr.Names[0], "/")
		}
		statuses = append(statuses, ContainerStatus{
			Name:   name,
			Image:  ctr.Image,
			State:  ctr.State,
			Status: ctr.Status,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}

// Close closes the daemon connection.
func (c *DockerClient) Close() error {
	return c.cli.Close()
}
