package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog/log"
)

var (
	once       sync.Once
	setupErr   error
	dockerPool *dockertest.Pool
	resWandb   *dockertest.Resource
	baseURL    string
)

// Setup launches a local WandB server container once per test binary.
// Callers gate on an environment variable so the default test run never
// needs Docker.
func Setup(ctx context.Context) error {
	once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, 7*time.Minute)
		defer cancel()

		pool, err := dockertest.NewPool("")
		if err != nil {
			setupErr = fmt.Errorf("could not connect to docker: %w", err)
			return
		}
		if err := pool.Client.Ping(); err != nil {
			setupErr = fmt.Errorf("could not ping docker: %w", err)
			return
		}
		dockerPool = pool

		resource, err := pool.RunWithOptions(&dockertest.RunOptions{
			Repository:   "wandb/local",
			Tag:          "latest",
			ExposedPorts: []string{"8080/tcp"},
		}, func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{
				Name: "no",
			}
		})
		if err != nil {
			setupErr = fmt.Errorf("could not start wandb/local: %w", err)
			return
		}
		resWandb = resource

		resource.Expire(600)

		port := resource.GetPort("8080/tcp")
		baseURL = fmt.Sprintf("http://127.0.0.1:%s", port)
		log.Info().Msgf("wandb/local started on %s", baseURL)

		if err := waitForHealthy(ctx, baseURL, 3*time.Minute); err != nil {
			setupErr = fmt.Errorf("wandb/local did not become healthy: %w", err)
			return
		}
		log.Info().Msg("wandb/local is healthy, running tests")
	})
	return setupErr
}

// BaseURL returns the address of the local server started by Setup.
func BaseURL() string {
	return baseURL
}

func Teardown() {
	if dockerPool != nil && resWandb != nil {
		if err := dockerPool.Purge(resWandb); err != nil {
			log.Error().Err(err).Msg("could not purge wandb/local resource")
		}
	}
}

func waitForHealthy(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := client.Get(url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(2 * time.Second)
	}

	return fmt.Errorf("timeout waiting for %s/healthz", url)
}
