package testtool

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// SetupContainer start a throwaway container for integration tests,
// returns the container plus mapped host and port of the first exposed
// port. The library panics instead of erroring when no container
// provider is reachable, that panic is folded into err so callers can
// skip instead of crash.
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (container testcontainers.Container, host string, port string, err error) {
	defer func() {
		if r := recover(); r != nil {
			container, host, port = nil, "", ""
			err = fmt.Errorf("container setup failed: %v", r)
		}
	}()

	container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}

	host, err = container.Host(ctx)
	if err != nil {
		return nil, "", "", err
	}

	// ExposedPorts[0] is "6379/tcp" style, strip the proto suffix
	natPort, err := nat.NewPort("tcp", req.ExposedPorts[0][:len(req.ExposedPorts[0])-4])
	if err != nil {
		return nil, "", "", err
	}

	mapped, err := container.MappedPort(ctx, natPort)
	if err != nil {
		return nil, "", "", err
	}

	return container, host, mapped.Port(), nil
}
