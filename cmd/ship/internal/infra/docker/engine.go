package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrDockerNotFound is returned when the docker binary is not available.
	ErrDockerNotFound = errors.New("docker not found")

	// ErrNameConflict is returned when a container name is already taken.
	ErrNameConflict = errors.New("container name already in use")

	// ErrPortInUse is returned when a derived host port is already bound.
	ErrPortInUse = errors.New("host port already allocated")

	// ErrUnknownService is returned for service names other than the
	// postgres/redis pair this engine manages.
	ErrUnknownService = errors.New("unknown service")

	// ErrCleanupPartial is returned when cleanup completes with some errors.
	ErrCleanupPartial = errors.New("cleanup completed with errors")

	// ErrInvalidConfig is returned when the engine Config is invalid.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrInvalidBuildArg is returned when a build argument key is malformed.
	ErrInvalidBuildArg = errors.New("invalid build argument")
)

// Compile-time checks that errors implement error interface.
var (
	_ error = ErrDockerNotFound
	_ error = ErrNameConflict
	_ error = ErrPortInUse
	_ error = ErrUnknownService
	_ error = ErrCleanupPartial
	_ error = ErrInvalidConfig
	_ error = ErrInvalidBuildArg
)

// buildArgKeyRegex validates build argument keys.
// Keys must start with letter or underscore, contain only alphanumerics and underscores.
var buildArgKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// =============================================================================
// Service Naming
// =============================================================================

const (
	// ServicePostgres identifies the ephemeral Postgres container.
	ServicePostgres = "postgres"

	// ServiceRedis identifies the ephemeral Redis container.
	ServiceRedis = "redis"

	// BuildLabelKey is the container label carrying the build number.
	// Cleanup uses it to find strays that escaped the name-based removal.
	BuildLabelKey = "ship.build"
)

// PostgresContainerName returns the Postgres container name for a build.
//
// # Description
//
// Container names are derived from the build number so that concurrent
// builds never share a container. Build 7 gets "postgres-test-7",
// build 8 gets "postgres-test-8", and the two can run side by side.
//
// # Inputs
//
//   - buildNumber: The build number (positive)
//
// # Outputs
//
//   - string: Container name like "postgres-test-7"
//
// # Example
//
//	name := docker.PostgresContainerName(7)
//	// name == "postgres-test-7"
func PostgresContainerName(buildNumber int) string {
	return fmt.Sprintf("postgres-test-%d", buildNumber)
}

// RedisContainerName returns the Redis container name for a build.
//
// # Description
//
// Same derivation as PostgresContainerName; build 7 gets "redis-test-7".
//
// # Inputs
//
//   - buildNumber: The build number (positive)
//
// # Outputs
//
//   - string: Container name like "redis-test-7"
//
// # Example
//
//	name := docker.RedisContainerName(7)
//	// name == "redis-test-7"
func RedisContainerName(buildNumber int) string {
	return fmt.Sprintf("redis-test-%d", buildNumber)
}

// HostPort returns the host port for a service in a given build.
//
// # Description
//
// Host ports are the service base port plus the build number, so each
// build binds a distinct port and parallel builds do not collide.
// Postgres in build 7 binds 5432+7=5439; Redis binds 6379+7=6386.
//
// # Inputs
//
//   - basePort: Service base port (5432 for Postgres, 6379 for Redis)
//   - buildNumber: The build number
//
// # Outputs
//
//   - int: Derived host port
//
// # Example
//
//	port := docker.HostPort(5432, 7)
//	// port == 5439
//
// # Limitations
//
//   - Large build numbers can push the result past 65535; NewDefaultEngine
//     rejects configurations where that happens
func HostPort(basePort, buildNumber int) int {
	return basePort + buildNumber
}

// =============================================================================
// Interface Definition
// =============================================================================

// Engine manages the docker resources of a single build: the ephemeral
// Postgres/Redis pair the tests run against, and the application image
// that gets built and pushed at the end of the pipeline.
//
// # Description
//
// Every docker CLI interaction goes through this interface so tests can
// substitute MockEngine and the pipeline stages stay free of exec calls.
// The engine is scoped to one build number; names, ports, and labels are
// all derived from it.
type Engine interface {
	// Up starts the ephemeral service containers for this build.
	//
	// # Description
	//
	// Executes `docker run -d` for each requested service with the
	// build-derived container name, host port, and build label.
	// Postgres receives the database name/user/password environment;
	// Redis runs with image defaults. Containers are started detached;
	// readiness is the caller's concern (the health package waits for
	// Postgres to accept SQL and Redis to answer PING).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration including:
	//   - Services: Which services to start (empty = both)
	//   - Recreate: Remove any same-named leftover container first
	//   - Timeout: Maximum execution time per container (0 = default)
	//
	// # Outputs
	//
	//   - *UpResult: Started containers with names, IDs, and ports
	//   - error: ErrNameConflict, ErrPortInUse, ErrUnknownService, or
	//     execution failure
	//
	// # Example
	//
	//	result, err := engine.Up(ctx, UpOptions{})
	//	if err != nil {
	//	    return fmt.Errorf("test infrastructure failed: %w", err)
	//	}
	//	for _, c := range result.Started {
	//	    fmt.Printf("%s on host port %d\n", c.Name, c.HostPort)
	//	}
	//
	// # Limitations
	//
	//   - Does not wait for services to become ready
	//   - First run may pull images, which dominates the start time
	//
	// # Assumptions
	//
	//   - Docker daemon is running and accessible
	//   - Derived host ports are free (ErrPortInUse otherwise)
	Up(ctx context.Context, opts UpOptions) (*UpResult, error)

	// Down removes this build's containers.
	//
	// # Description
	//
	// Executes `docker rm -f` for each managed container and removes the
	// build network when one is configured. Containers that are already
	// gone are reported in AlreadyGone, not treated as failures, so Down
	// is safe to call twice.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration including:
	//   - RemoveVolumes: Also remove anonymous volumes
	//   - Timeout: Maximum execution time per container (0 = default)
	//
	// # Outputs
	//
	//   - *DownResult: Removed and already-gone container names
	//   - error: If any removal failed for a reason other than absence
	//
	// # Example
	//
	//	result, err := engine.Down(ctx, DownOptions{RemoveVolumes: true})
	//	fmt.Printf("Removed %d containers\n", len(result.Removed))
	//
	// # Limitations
	//
	//   - Force-removes without a graceful stop; use Stop first if the
	//     containers should flush state
	//
	// # Assumptions
	//
	//   - Docker daemon is running and accessible
	Down(ctx context.Context, opts DownOptions) (*DownResult, error)

	// Stop stops this build's containers with graceful/force phases.
	//
	// # Description
	//
	// Two-phase stop: first `docker stop -t <graceful>` sends SIGTERM and
	// waits, then any container still running is force-stopped with a
	// zero timeout (SIGKILL). Containers are counted before and after
	// each phase so the result reports how each one went down.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - opts: Configuration including:
	//   - GracefulTimeout: SIGTERM wait before escalating (0 = 10s)
	//   - SkipForceStop: Only send SIGTERM, never escalate
	//
	// # Outputs
	//
	//   - *StopResult: Counts of graceful/force/already stopped
	//   - error: If stop completed with errors
	//
	// # Example
	//
	//	result, err := engine.Stop(ctx, StopOptions{
	//	    GracefulTimeout: 15 * time.Second,
	//	})
	//	fmt.Printf("Stopped %d (%d forced)\n", result.TotalStopped, result.ForceStopped)
	//
	// # Limitations
	//
	//   - Containers are left in place; pair with Down to remove them
	//
	// # Assumptions
	//
	//   - Containers may already be stopped (counted as AlreadyStopped)
	Stop(ctx context.Context, opts StopOptions) (*StopResult, error)

	// Logs streams one container's logs to the provided writer.
	//
	// # Description
	//
	// Executes `docker logs` for the named service with optional follow
	// mode. Streams until the command exits or the context is cancelled.
	// Does not acquire the mutex (read-only operation).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation (controls stream lifetime)
	//   - opts: Configuration including:
	//   - Service: "postgres" or "redis" (required)
	//   - Follow: Stream continuously until cancelled
	//   - Tail: Limit to last N lines (0 = all)
	//   - Timestamps: Prepend timestamp to each line
	//   - Since: Show logs since this time
	//   - w: Writer to receive log output
	//
	// # Outputs
	//
	//   - error: ErrUnknownService, or if the command fails to start
	//
	// # Example
	//
	//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	//	defer cancel()
	//	err := engine.Logs(ctx, LogsOptions{
	//	    Service: docker.ServicePostgres,
	//	    Tail:    100,
	//	}, os.Stdout)
	//
	// # Limitations
	//
	//   - Follow mode blocks until context cancellation
	//
	// # Assumptions
	//
	//   - The container exists (docker reports an error otherwise)
	Logs(ctx context.Context, opts LogsOptions, w io.Writer) error

	// Status returns the current state of this build's containers.
	//
	// # Description
	//
	// Executes `docker ps -a` filtered to the build's container names and
	// parses the JSON output. Returns state, health, image, and port
	// mappings for each container plus running/stopped/unhealthy counts.
	// Does not acquire the mutex (read-only operation).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//
	// # Outputs
	//
	//   - *InfraStatus: Container list and counts (empty when none exist)
	//   - error: If the query or parsing fails
	//
	// # Example
	//
	//	status, err := engine.Status(ctx)
	//	if err != nil {
	//	    return err
	//	}
	//	fmt.Printf("Running: %d/%d\n", status.Running, len(status.Containers))
	//
	// # Limitations
	//
	//   - Health is parsed from the status string and is nil for images
	//     without a HEALTHCHECK
	//
	// # Assumptions
	//
	//   - Docker daemon is running and accessible
	Status(ctx context.Context) (*InfraStatus, error)

	// ForceCleanup removes every docker resource this build created.
	//
	// # Description
	//
	// Multi-step teardown used by the always-run post-build phase:
	// force-stop the containers, remove them by name, remove strays by
	// build label, remove the build network when configured, and prune
	// dangling images. Steps continue past individual failures; errors
	// are collected into the result.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//
	// # Outputs
	//
	//   - *CleanupResult: Counts of stopped/removed containers and pruned
	//     images, plus any errors
	//   - error: ErrCleanupPartial if some steps failed
	//
	// # Example
	//
	//	result, err := engine.ForceCleanup(ctx)
	//	if errors.Is(err, docker.ErrCleanupPartial) {
	//	    log.Warn("cleanup incomplete", "errors", result.Errors)
	//	}
	//
	// # Limitations
	//
	//   - Label-based removal may overlap the name-based pass (a
	//     container can be counted twice)
	//   - Image prune affects dangling images daemon-wide, not just this
	//     build's layers
	//
	// # Assumptions
	//
	//   - Absent containers are not errors (idempotent)
	ForceCleanup(ctx context.Context) (*CleanupResult, error)

	// BuildImage builds the application image, streaming build output.
	//
	// # Description
	//
	// Executes `docker build` in the checkout directory with one -t flag
	// per requested tag. Output streams to the provided writer as the
	// build progresses; nothing is buffered.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration including:
	//   - ContextDir: Build context directory (required)
	//   - Dockerfile: Alternate dockerfile path (optional)
	//   - Tags: Image tags to apply (at least one required)
	//   - BuildArgs: --build-arg key/value pairs
	//   - Pull: Always attempt to pull newer base images
	//   - NoCache: Disable the layer cache
	//   - Timeout: Maximum build time (0 = default)
	//   - w: Writer for streaming build output
	//
	// # Outputs
	//
	//   - *BuildResult: Success flag, tags, duration, command string
	//   - error: ErrInvalidConfig, ErrInvalidBuildArg, or build failure
	//
	// # Example
	//
	//	result, err := engine.BuildImage(ctx, BuildOptions{
	//	    ContextDir: "/workspace/gig_router",
	//	    Tags:       []string{"registry.local/gig-router:7", "registry.local/gig-router:latest"},
	//	}, os.Stdout)
	//
	// # Limitations
	//
	//   - Exit details beyond success/failure are not available in
	//     streaming mode
	//   - Builds that pull large base images may need an explicit Timeout
	//     above the engine default
	//
	// # Assumptions
	//
	//   - ContextDir contains a Dockerfile (or Dockerfile names one)
	BuildImage(ctx context.Context, opts BuildOptions, w io.Writer) (*BuildResult, error)

	// Login authenticates the docker CLI against a registry.
	//
	// # Description
	//
	// Executes `docker login --password-stdin`, feeding the password
	// through stdin so it never appears in the process argument list or
	// in the recorded command string.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration including:
	//   - Registry: Registry host (empty = Docker Hub)
	//   - Username: Registry username (required)
	//   - Password: Registry password or token (required)
	//
	// # Outputs
	//
	//   - *RunResult: Command result; Command never contains the password
	//   - error: ErrInvalidConfig or authentication failure
	//
	// # Example
	//
	//	result, err := engine.Login(ctx, LoginOptions{
	//	    Registry: "registry.example.com",
	//	    Username: "ci-bot",
	//	    Password: password,
	//	})
	//
	// # Limitations
	//
	//   - Credentials land in the docker credential store configured on
	//     the host; the engine does not log out afterwards
	//
	// # Assumptions
	//
	//   - The registry speaks the docker registry protocol
	Login(ctx context.Context, opts LoginOptions) (*RunResult, error)

	// PushImage pushes one image reference to its registry.
	//
	// # Description
	//
	// Executes `docker push <ref>`. Call once per tag; the pipeline
	// pushes both the build-number tag and latest. Does not acquire the
	// mutex (pushes do not mutate local engine state).
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - ref: Full image reference including tag
	//
	// # Outputs
	//
	//   - *RunResult: Contains stdout, stderr, exit code, duration
	//   - error: If the push fails
	//
	// # Example
	//
	//	result, err := engine.PushImage(ctx, "registry.local/gig-router:7")
	//
	// # Limitations
	//
	//   - Capped at the engine DefaultTimeout; raise it for slow
	//     registries or large images
	//
	// # Assumptions
	//
	//   - Login has already succeeded for the target registry
	PushImage(ctx context.Context, ref string) (*RunResult, error)

	// ContainerNames returns the container names this engine manages.
	//
	// # Description
	//
	// Returns the build-derived Postgres and Redis container names, in
	// that order. Useful for status displays and log collection.
	//
	// # Outputs
	//
	//   - []string: Container names like ["postgres-test-7", "redis-test-7"]
	//
	// # Example
	//
	//	for _, name := range engine.ContainerNames() {
	//	    fmt.Println(name)
	//	}
	ContainerNames() []string
}

// =============================================================================
// Configuration Types
// =============================================================================

// Config holds the engine configuration for one build.
type Config struct {
	// BuildNumber scopes every derived name, port, and label.
	// Required, must be positive.
	BuildNumber int

	// PostgresImage is the Postgres image to run.
	// Default: "postgres:15-alpine"
	PostgresImage string

	// RedisImage is the Redis image to run.
	// Default: "redis:7-alpine"
	RedisImage string

	// PostgresBasePort is added to BuildNumber for the Postgres host port.
	// Default: 5432
	PostgresBasePort int

	// RedisBasePort is added to BuildNumber for the Redis host port.
	// Default: 6379
	RedisBasePort int

	// DatabaseName is the database created inside the Postgres container.
	// Default: "gig_router_test"
	DatabaseName string

	// DatabaseUser is the Postgres superuser name.
	// Default: "postgres"
	DatabaseUser string

	// DatabasePassword is the Postgres superuser password.
	// Default: "postgres"
	DatabasePassword string

	// NetworkName, when set, is a dedicated bridge network the containers
	// join. Created on Up, removed on Down/ForceCleanup.
	// Default: "" (containers use the default bridge; tests reach them
	// through published localhost ports)
	NetworkName string

	// DefaultTimeout applies to operations without an explicit timeout.
	// Default: 5 minutes
	DefaultTimeout time.Duration
}

// validateEngineConfig checks Config for required fields and sane ranges.
//
// # Description
//
// Validates the fields a caller must or may set before defaults are
// applied. Port range checks for the derived host ports happen after
// defaulting, in validateDerivedPorts.
//
// # Inputs
//
//   - config: Config to validate
//
// # Outputs
//
//   - error: ErrInvalidConfig with details if validation fails
//
// # Example
//
//	if err := validateEngineConfig(config); err != nil {
//	    return nil, err
//	}
//
// # Limitations
//
//   - Does not verify images exist or ports are free
//
// # Assumptions
//
//   - Called before applyEngineConfigDefaults
func validateEngineConfig(config Config) error {
	if config.BuildNumber <= 0 {
		return fmt.Errorf("%w: BuildNumber must be positive, got %d", ErrInvalidConfig, config.BuildNumber)
	}
	if config.PostgresBasePort < 0 || config.PostgresBasePort > 65535 {
		return fmt.Errorf("%w: PostgresBasePort %d out of range", ErrInvalidConfig, config.PostgresBasePort)
	}
	if config.RedisBasePort < 0 || config.RedisBasePort > 65535 {
		return fmt.Errorf("%w: RedisBasePort %d out of range", ErrInvalidConfig, config.RedisBasePort)
	}
	if config.DefaultTimeout < 0 {
		return fmt.Errorf("%w: DefaultTimeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// applyEngineConfigDefaults fills in default values for optional fields.
//
// # Description
//
// Sets defaults for any zero-valued optional field. BuildNumber has no
// default; it is required and validated separately.
//
// # Inputs
//
//   - config: Config to apply defaults to (modified in place)
//
// # Outputs
//
//   - None (modifies config)
//
// # Example
//
//	applyEngineConfigDefaults(&config)
//	// config.PostgresImage == "postgres:15-alpine" if it was empty
func applyEngineConfigDefaults(config *Config) {
	if config.PostgresImage == "" {
		config.PostgresImage = "postgres:15-alpine"
	}
	if config.RedisImage == "" {
		config.RedisImage = "redis:7-alpine"
	}
	if config.PostgresBasePort == 0 {
		config.PostgresBasePort = 5432
	}
	if config.RedisBasePort == 0 {
		config.RedisBasePort = 6379
	}
	if config.DatabaseName == "" {
		config.DatabaseName = "gig_router_test"
	}
	if config.DatabaseUser == "" {
		config.DatabaseUser = "postgres"
	}
	if config.DatabasePassword == "" {
		config.DatabasePassword = "postgres"
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Minute
	}
}

// validateDerivedPorts checks that base port + build number stays a port.
//
// # Description
//
// The host port derivation is base + build number, so a long-lived
// pipeline eventually produces numbers past 65535. Rejecting that here
// gives a clear error instead of a confusing docker bind failure.
//
// # Inputs
//
//   - config: Config with defaults already applied
//
// # Outputs
//
//   - error: ErrInvalidConfig if a derived port exceeds 65535
//
// # Example
//
//	if err := validateDerivedPorts(config); err != nil {
//	    return nil, err
//	}
//
// # Assumptions
//
//   - applyEngineConfigDefaults has run (base ports are non-zero)
func validateDerivedPorts(config Config) error {
	if port := HostPort(config.PostgresBasePort, config.BuildNumber); port > 65535 {
		return fmt.Errorf("%w: derived postgres host port %d exceeds 65535", ErrInvalidConfig, port)
	}
	if port := HostPort(config.RedisBasePort, config.BuildNumber); port > 65535 {
		return fmt.Errorf("%w: derived redis host port %d exceeds 65535", ErrInvalidConfig, port)
	}
	return nil
}

// =============================================================================
// Option and Result Types
// =============================================================================

// UpOptions configures the Up operation.
type UpOptions struct {
	// Services limits which services to start.
	// Empty means both postgres and redis.
	Services []string

	// Recreate removes a leftover same-named container before starting.
	// Useful when a previous run with the same build number crashed
	// before cleanup.
	Recreate bool

	// Timeout is the maximum time per container start.
	// Zero means the engine default.
	Timeout time.Duration
}

// StartedContainer describes one container started by Up.
type StartedContainer struct {
	// Service is "postgres" or "redis".
	Service string

	// Name is the build-derived container name.
	Name string

	// ID is the container ID docker reported.
	ID string

	// Image is the image the container runs.
	Image string

	// HostPort is the published host port.
	HostPort int

	// ContainerPort is the service port inside the container.
	ContainerPort int
}

// UpResult contains the result of an Up operation.
type UpResult struct {
	// Started lists the containers that were started, in start order.
	Started []StartedContainer

	// Duration is the total time to start all requested services.
	Duration time.Duration
}

// DownOptions configures the Down operation.
type DownOptions struct {
	// RemoveVolumes also removes anonymous volumes.
	// Maps to: -v flag
	RemoveVolumes bool

	// Timeout is the maximum time per container removal.
	// Zero means the engine default.
	Timeout time.Duration
}

// DownResult contains the result of a Down operation.
type DownResult struct {
	// Removed lists containers that existed and were removed.
	Removed []string

	// AlreadyGone lists containers that did not exist.
	AlreadyGone []string

	// NetworkRemoved reports whether the build network was removed.
	NetworkRemoved bool

	// Duration is the total removal time.
	Duration time.Duration

	// Errors contains any non-fatal errors encountered.
	Errors []string
}

// StopOptions configures the Stop operation.
type StopOptions struct {
	// GracefulTimeout is the time to wait for graceful shutdown (SIGTERM).
	// After this timeout, containers are force-stopped with SIGKILL.
	// Default: 10 seconds
	GracefulTimeout time.Duration

	// SkipForceStop disables the automatic force-stop after graceful timeout.
	// If true, only sends SIGTERM and waits for GracefulTimeout.
	// Default: false (force-stop enabled)
	SkipForceStop bool
}

// StopResult contains the result of a Stop operation.
type StopResult struct {
	// TotalStopped is the total number of containers stopped.
	TotalStopped int

	// GracefulStopped is containers that stopped gracefully (SIGTERM).
	GracefulStopped int

	// ForceStopped is containers that required force stop (SIGKILL).
	ForceStopped int

	// AlreadyStopped is containers that were already stopped.
	AlreadyStopped int

	// ContainerNames lists the containers that were running beforehand.
	ContainerNames []string

	// Errors contains any non-fatal errors encountered.
	Errors []string
}

// LogsOptions configures the Logs operation.
type LogsOptions struct {
	// Service selects the container: "postgres" or "redis".
	// Required.
	Service string

	// Follow streams logs continuously.
	// Maps to: -f flag
	Follow bool

	// Tail limits output to last N lines.
	// Zero means all logs.
	Tail int

	// Timestamps prepends each line with timestamp.
	// Maps to: --timestamps flag
	Timestamps bool

	// Since shows logs since timestamp.
	// Maps to: --since flag
	Since time.Time
}

// InfraStatus describes the current state of a build's containers.
type InfraStatus struct {
	// Containers lists the build's containers and their states.
	Containers []ContainerStatus

	// Running is the count of running containers.
	Running int

	// Stopped is the count of stopped/exited containers.
	Stopped int

	// Unhealthy is the count of containers failing their healthcheck.
	Unhealthy int
}

// ContainerStatus describes one container.
type ContainerStatus struct {
	// Service is "postgres" or "redis".
	Service string

	// Name is the container name.
	Name string

	// ID is the container ID.
	ID string

	// State is the docker state string (running, exited, created, ...).
	State string

	// Image is the image the container runs.
	Image string

	// Healthy is the healthcheck result.
	// nil means the image has no healthcheck.
	Healthy *bool

	// Ports lists published port mappings.
	Ports []PortMapping

	// CreatedAt is the creation timestamp string docker reported.
	CreatedAt string
}

// PortMapping describes one published port.
type PortMapping struct {
	// HostIP is the bound host interface ("0.0.0.0", "::", or specific).
	HostIP string

	// HostPort is the port on the host.
	HostPort int

	// ContainerPort is the port inside the container.
	ContainerPort int

	// Protocol is "tcp" or "udp".
	Protocol string
}

// CleanupResult contains the result of a ForceCleanup operation.
type CleanupResult struct {
	// ContainersStopped is the number of containers force-stopped.
	ContainersStopped int

	// ContainersRemoved is the number of containers removed.
	ContainersRemoved int

	// ImagesPruned is the number of dangling image layers deleted.
	ImagesPruned int

	// NetworkRemoved reports whether the build network was removed.
	NetworkRemoved bool

	// ContainerNames lists the names (or IDs, for label strays) removed.
	ContainerNames []string

	// Errors contains any non-fatal errors encountered.
	Errors []string
}

// BuildOptions configures the BuildImage operation.
type BuildOptions struct {
	// ContextDir is the docker build context directory.
	// Required.
	ContextDir string

	// Dockerfile is an alternate dockerfile path.
	// Maps to: -f flag. Empty means <ContextDir>/Dockerfile.
	Dockerfile string

	// Tags are the image tags to apply.
	// At least one is required. Maps to: -t flag per tag.
	Tags []string

	// BuildArgs are --build-arg key/value pairs.
	// Keys must match [a-zA-Z_][a-zA-Z0-9_]*.
	BuildArgs map[string]string

	// Pull always attempts to pull newer base images.
	// Maps to: --pull flag
	Pull bool

	// NoCache disables the layer cache.
	// Maps to: --no-cache flag
	NoCache bool

	// Timeout is the maximum build time.
	// Zero means the engine default.
	Timeout time.Duration
}

// BuildResult contains the result of a BuildImage operation.
type BuildResult struct {
	// Success indicates the build completed with exit code 0.
	Success bool

	// Tags are the tags that were applied.
	Tags []string

	// Duration is the build time.
	Duration time.Duration

	// Command is the command that was executed.
	Command string
}

// LoginOptions configures the Login operation.
type LoginOptions struct {
	// Registry is the registry host.
	// Empty means Docker Hub.
	Registry string

	// Username is the registry username.
	// Required.
	Username string

	// Password is the registry password or access token.
	// Required. Passed via stdin, never via argv.
	Password string
}

// RunResult contains the result of a single docker command.
type RunResult struct {
	// Success indicates the command completed with exit code 0.
	Success bool

	// ExitCode is the process exit code.
	// -1 when the command could not run or the code is unknown.
	ExitCode int

	// Stdout contains captured standard output.
	Stdout string

	// Stderr contains captured standard error.
	Stderr string

	// Duration is the execution time.
	Duration time.Duration

	// Command is the command that was executed.
	// Never contains credential material.
	Command string
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultEngine is the production implementation of Engine.
//
// # Description
//
// Shells out to the docker CLI through a process.Manager. A mutex
// serializes mutating operations (Up, Down, Stop, ForceCleanup,
// BuildImage, Login) so concurrent callers cannot interleave container
// lifecycle changes; reads (Logs, Status) and pushes do not lock.
//
// # Example
//
//	engine, err := docker.NewDefaultEngine(docker.Config{BuildNumber: 7}, proc)
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Up(ctx, docker.UpOptions{})
type DefaultEngine struct {
	config Config
	proc   process.Manager
	mu     sync.Mutex
}

// Compile-time check that DefaultEngine implements Engine.
var _ Engine = (*DefaultEngine)(nil)

// NewDefaultEngine creates a DefaultEngine for one build.
//
// # Description
//
// Validates the configuration, applies defaults for optional fields,
// and verifies the derived host ports are still valid ports.
//
// # Inputs
//
//   - config: Engine configuration (BuildNumber required)
//   - proc: Process manager for command execution (required)
//
// # Outputs
//
//   - *DefaultEngine: Configured engine
//   - error: ErrInvalidConfig if validation fails
//
// # Example
//
//	engine, err := docker.NewDefaultEngine(docker.Config{
//	    BuildNumber:   7,
//	    PostgresImage: "postgres:16-alpine",
//	}, &process.DefaultManager{})
//
// # Limitations
//
//   - Does not probe for the docker binary; the first operation surfaces
//     ErrDockerNotFound if it is missing
func NewDefaultEngine(config Config, proc process.Manager) (*DefaultEngine, error) {
	if proc == nil {
		return nil, fmt.Errorf("%w: process manager is required", ErrInvalidConfig)
	}
	if err := validateEngineConfig(config); err != nil {
		return nil, err
	}
	applyEngineConfigDefaults(&config)
	if err := validateDerivedPorts(config); err != nil {
		return nil, err
	}

	return &DefaultEngine{
		config: config,
		proc:   proc,
	}, nil
}

// Up implements Engine.
//
// # Description
//
// Acquires the mutex, optionally creates the build network, then runs
// `docker run -d` per requested service. The container ID printed by
// docker becomes StartedContainer.ID. Run failures are mapped to
// ErrNameConflict or ErrPortInUse when the daemon error identifies one
// of those conditions.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - opts: Up options
//
// # Outputs
//
//   - *UpResult: Containers started before any failure
//   - error: First failure, with started containers still in the result
//
// # Example
//
//	result, err := engine.Up(ctx, UpOptions{Recreate: true})
//
// # Limitations
//
//   - Services start sequentially; a failure leaves earlier services
//     running (cleanup is the caller's responsibility)
//
// # Assumptions
//
//   - Docker daemon is running
func (e *DefaultEngine) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	result := &UpResult{Started: []StartedContainer{}}

	if e.config.NetworkName != "" {
		if err := e.ensureNetwork(ctx); err != nil {
			return result, err
		}
	}

	for _, service := range e.resolveServices(opts.Services) {
		spec, err := e.containerSpec(service)
		if err != nil {
			return result, err
		}

		if opts.Recreate {
			// Leftover from a crashed run with the same build number.
			_, _ = e.runDocker(ctx, []string{"rm", "-f", spec.name}, 30*time.Second)
		}

		runResult, err := e.runDocker(ctx, spec.runArgs, e.resolveTimeout(opts.Timeout))
		if err != nil {
			if runResult != nil {
				if strings.Contains(runResult.Stderr, "is already in use") {
					return result, fmt.Errorf("%w: %s", ErrNameConflict, spec.name)
				}
				if strings.Contains(runResult.Stderr, "port is already allocated") {
					return result, fmt.Errorf("%w: %d for %s", ErrPortInUse, spec.hostPort, spec.name)
				}
			}
			return result, fmt.Errorf("starting %s: %w", spec.name, err)
		}

		result.Started = append(result.Started, StartedContainer{
			Service:       spec.service,
			Name:          spec.name,
			ID:            strings.TrimSpace(runResult.Stdout),
			Image:         spec.image,
			HostPort:      spec.hostPort,
			ContainerPort: spec.containerPort,
		})
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Down implements Engine.
//
// # Description
//
// Acquires the mutex and runs `docker rm -f` per managed container,
// classifying "No such container" responses as AlreadyGone. Removes the
// build network afterwards when one is configured.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - opts: Down options
//
// # Outputs
//
//   - *DownResult: Removal outcome per container
//   - error: If removals failed for reasons other than absence
//
// # Example
//
//	result, err := engine.Down(ctx, DownOptions{})
//
// # Assumptions
//
//   - Calling Down on a build with no containers is a no-op, not an error
func (e *DefaultEngine) Down(ctx context.Context, opts DownOptions) (*DownResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	result := &DownResult{
		Removed:     []string{},
		AlreadyGone: []string{},
		Errors:      []string{},
	}

	for _, name := range e.ContainerNames() {
		args := []string{"rm", "-f"}
		if opts.RemoveVolumes {
			args = append(args, "-v")
		}
		args = append(args, name)

		runResult, err := e.runDocker(ctx, args, e.resolveTimeout(opts.Timeout))
		if err != nil {
			if runResult != nil && e.isNoSuchContainerError(runResult.Stderr) {
				result.AlreadyGone = append(result.AlreadyGone, name)
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", name, err))
			continue
		}
		result.Removed = append(result.Removed, name)
	}

	if e.config.NetworkName != "" {
		removed, err := e.removeNetwork(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("remove network: %v", err))
		}
		result.NetworkRemoved = removed
	}

	result.Duration = time.Since(start)
	if len(result.Errors) > 0 {
		return result, fmt.Errorf("down completed with errors: %v", result.Errors)
	}
	return result, nil
}

// Stop implements Engine.
//
// # Description
//
// Acquires the mutex and lists running managed containers, then stops
// them in two phases: graceful (`docker stop -t <seconds>`) and, for
// anything still running, force (`docker stop -t 0`). Counts before and
// after each phase attribute every container to graceful, force, or
// already-stopped.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - opts: Stop options
//
// # Outputs
//
//   - *StopResult: Stop counts and any errors
//   - error: If stop completed with errors
//
// # Example
//
//	result, err := engine.Stop(ctx, StopOptions{})
//
// # Assumptions
//
//   - Containers may already be stopped (counted as AlreadyStopped)
func (e *DefaultEngine) Stop(ctx context.Context, opts StopOptions) (*StopResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &StopResult{
		ContainerNames: []string{},
		Errors:         []string{},
	}

	gracefulTimeout := e.resolveGracefulTimeout(opts.GracefulTimeout)

	runningBefore, err := e.listRunningContainers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to list containers: %v", err))
	}
	result.AlreadyStopped = len(e.ContainerNames()) - len(runningBefore)

	if len(runningBefore) > 0 {
		// Phase 1: Graceful stop with timeout
		if gracefulErr := e.executeGracefulStop(ctx, runningBefore, gracefulTimeout); gracefulErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("graceful stop: %v", gracefulErr))
		}

		runningAfterGraceful, _ := e.listRunningContainers(ctx)
		result.GracefulStopped = len(runningBefore) - len(runningAfterGraceful)

		// Phase 2: Force stop if containers remain and not skipped
		if !opts.SkipForceStop && len(runningAfterGraceful) > 0 {
			if forceErr := e.executeForceStop(ctx, runningAfterGraceful); forceErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("force stop: %v", forceErr))
			}

			runningAfterForce, _ := e.listRunningContainers(ctx)
			result.ForceStopped = len(runningAfterGraceful) - len(runningAfterForce)
		}
	}

	result.TotalStopped = result.GracefulStopped + result.ForceStopped
	result.ContainerNames = append(result.ContainerNames, runningBefore...)

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("stop completed with errors: %v", result.Errors)
	}
	return result, nil
}

// Logs implements Engine.
//
// # Description
//
// Resolves the service name to its container name and streams
// `docker logs` output to the writer. Uses the caller's context for
// lifetime control; follow mode runs until cancellation.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - opts: Logs options (Service required)
//   - w: Writer to receive output
//
// # Outputs
//
//   - error: ErrUnknownService or command failure
//
// # Example
//
//	err := engine.Logs(ctx, LogsOptions{Service: docker.ServiceRedis, Tail: 50}, os.Stdout)
func (e *DefaultEngine) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	name, err := e.containerNameFor(opts.Service)
	if err != nil {
		return err
	}

	args := []string{"logs"}
	if opts.Follow {
		args = append(args, "-f")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", fmt.Sprintf("%d", opts.Tail))
	}
	if opts.Timestamps {
		args = append(args, "--timestamps")
	}
	if !opts.Since.IsZero() {
		args = append(args, "--since", opts.Since.Format(time.RFC3339))
	}
	args = append(args, name)

	return e.proc.RunStreaming(ctx, "", w, "docker", args...)
}

// Status implements Engine.
//
// # Description
//
// Runs `docker ps -a` with name filters for both managed containers and
// `--format '{{json .}}'`, then parses the line-delimited JSON. Rows
// whose name is not an exact managed name are dropped; the docker name
// filter matches substrings, so the build 7 filter also returns
// postgres-test-70 through postgres-test-79.
//
// # Inputs
//
//   - ctx: Context for cancellation
//
// # Outputs
//
//   - *InfraStatus: Parsed status (empty when no containers exist)
//   - error: If the query or parsing fails
//
// # Example
//
//	status, err := engine.Status(ctx)
func (e *DefaultEngine) Status(ctx context.Context) (*InfraStatus, error) {
	args := []string{
		"ps", "-a",
		"--filter", fmt.Sprintf("name=%s", PostgresContainerName(e.config.BuildNumber)),
		"--filter", fmt.Sprintf("name=%s", RedisContainerName(e.config.BuildNumber)),
		"--format", "{{json .}}",
	}

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if err != nil {
		return nil, err
	}

	return e.parseContainerStatus(output.Stdout)
}

// ForceCleanup implements Engine.
//
// # Description
//
// Acquires the mutex and runs the teardown steps in order: force stop,
// remove by name, remove strays by build label, remove the build network
// when configured, prune dangling images. Each step records failures
// into the result and the next step still runs.
//
// # Inputs
//
//   - ctx: Context for cancellation
//
// # Outputs
//
//   - *CleanupResult: What was stopped, removed, and pruned
//   - error: ErrCleanupPartial if any step recorded an error
//
// # Example
//
//	result, err := engine.ForceCleanup(ctx)
//
// # Assumptions
//
//   - Safe to call when nothing was ever started (all steps tolerate
//     absent resources)
func (e *DefaultEngine) ForceCleanup(ctx context.Context) (*CleanupResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &CleanupResult{
		ContainerNames: []string{},
		Errors:         []string{},
	}

	e.executeForceStopForCleanup(ctx, result)
	e.removeContainersByName(ctx, result)
	e.removeContainersByLabel(ctx, result)
	e.removeNetworkForCleanup(ctx, result)
	e.pruneDanglingImages(ctx, result)

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: %v", ErrCleanupPartial, result.Errors)
	}
	return result, nil
}

// BuildImage implements Engine.
//
// # Description
//
// Acquires the mutex, validates the options, and streams `docker build`
// output to the writer. The build runs with ContextDir as the working
// directory and "." as the context argument. Build args are emitted in
// sorted key order; map iteration order is random and the recorded
// command string should be reproducible.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - opts: Build options (ContextDir and at least one Tag required)
//   - w: Writer for streaming build output
//
// # Outputs
//
//   - *BuildResult: Success flag, tags, duration, command
//   - error: Validation or build failure
//
// # Example
//
//	result, err := engine.BuildImage(ctx, BuildOptions{
//	    ContextDir: checkoutDir,
//	    Tags:       []string{"gig-router:7", "gig-router:latest"},
//	}, logWriter)
func (e *DefaultEngine) BuildImage(ctx context.Context, opts BuildOptions, w io.Writer) (*BuildResult, error) {
	if err := e.validateBuildOptions(opts); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	args := []string{"build"}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	for _, tag := range opts.Tags {
		args = append(args, "-t", tag)
	}
	for _, pair := range e.sortedBuildArgs(opts.BuildArgs) {
		args = append(args, "--build-arg", pair)
	}
	if opts.Pull {
		args = append(args, "--pull")
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	args = append(args, ".")

	result := &BuildResult{
		Tags:    opts.Tags,
		Command: fmt.Sprintf("docker %s", strings.Join(args, " ")),
	}

	execCtx, cancel := context.WithTimeout(ctx, e.resolveTimeout(opts.Timeout))
	defer cancel()

	err := e.proc.RunStreaming(execCtx, opts.ContextDir, w, "docker", args...)
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("docker build failed: %w", err)
	}

	result.Success = true
	return result, nil
}

// Login implements Engine.
//
// # Description
//
// Acquires the mutex and runs `docker login -u <user> --password-stdin`
// with the password fed through stdin. Neither the argument list nor
// RunResult.Command ever contains the password.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - opts: Login options (Username and Password required)
//
// # Outputs
//
//   - *RunResult: Command result
//   - error: ErrInvalidConfig or authentication failure
//
// # Example
//
//	result, err := engine.Login(ctx, LoginOptions{Username: "ci-bot", Password: pw})
func (e *DefaultEngine) Login(ctx context.Context, opts LoginOptions) (*RunResult, error) {
	if opts.Username == "" {
		return nil, fmt.Errorf("%w: registry username is required", ErrInvalidConfig)
	}
	if opts.Password == "" {
		return nil, fmt.Errorf("%w: registry password is required", ErrInvalidConfig)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	args := []string{"login", "-u", opts.Username, "--password-stdin"}
	if opts.Registry != "" {
		args = append(args, opts.Registry)
	}

	start := time.Now()
	cmdStr := fmt.Sprintf("docker %s", strings.Join(args, " "))

	execCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	// The runner folds stderr into the returned error, so a failed login
	// surfaces its reason through err rather than RunResult.Stderr.
	output, err := e.proc.RunWithInput(execCtx, "docker", []byte(opts.Password), args...)

	result := &RunResult{
		Success:  err == nil,
		ExitCode: 0,
		Stdout:   string(output),
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("docker login failed: %w", err)
	}
	return result, nil
}

// PushImage implements Engine.
//
// # Description
//
// Runs `docker push <ref>` with output captured. Call once per tag.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - ref: Full image reference including tag
//
// # Outputs
//
//   - *RunResult: Contains stdout, stderr, exit code, duration
//   - error: If the push fails
//
// # Example
//
//	result, err := engine.PushImage(ctx, "registry.local/gig-router:latest")
func (e *DefaultEngine) PushImage(ctx context.Context, ref string) (*RunResult, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: image reference is required", ErrInvalidConfig)
	}
	return e.runDocker(ctx, []string{"push", ref}, e.resolveTimeout(0))
}

// ContainerNames implements Engine.
func (e *DefaultEngine) ContainerNames() []string {
	return []string{
		PostgresContainerName(e.config.BuildNumber),
		RedisContainerName(e.config.BuildNumber),
	}
}

// =============================================================================
// Private Helper Methods
// =============================================================================

// containerSpec describes one service container and its run arguments.
type containerSpec struct {
	service       string
	name          string
	image         string
	hostPort      int
	containerPort int
	runArgs       []string
}

// containerSpec builds the run specification for a service.
//
// # Description
//
// Derives the container name, host port, and `docker run` argument list
// for one of the managed services. Postgres receives the database
// environment; Redis runs with image defaults.
//
// # Inputs
//
//   - service: "postgres" or "redis"
//
// # Outputs
//
//   - containerSpec: Populated specification
//   - error: ErrUnknownService for anything else
//
// # Example
//
//	spec, err := e.containerSpec(ServicePostgres)
//	// spec.runArgs == ["run", "-d", "--name", "postgres-test-7", ...]
func (e *DefaultEngine) containerSpec(service string) (containerSpec, error) {
	switch service {
	case ServicePostgres:
		spec := containerSpec{
			service:       ServicePostgres,
			name:          PostgresContainerName(e.config.BuildNumber),
			image:         e.config.PostgresImage,
			hostPort:      HostPort(e.config.PostgresBasePort, e.config.BuildNumber),
			containerPort: 5432,
		}
		args := e.baseRunArgs(spec)
		args = append(args,
			"-e", fmt.Sprintf("POSTGRES_DB=%s", e.config.DatabaseName),
			"-e", fmt.Sprintf("POSTGRES_USER=%s", e.config.DatabaseUser),
			"-e", fmt.Sprintf("POSTGRES_PASSWORD=%s", e.config.DatabasePassword),
		)
		spec.runArgs = append(args, spec.image)
		return spec, nil

	case ServiceRedis:
		spec := containerSpec{
			service:       ServiceRedis,
			name:          RedisContainerName(e.config.BuildNumber),
			image:         e.config.RedisImage,
			hostPort:      HostPort(e.config.RedisBasePort, e.config.BuildNumber),
			containerPort: 6379,
		}
		spec.runArgs = append(e.baseRunArgs(spec), spec.image)
		return spec, nil

	default:
		return containerSpec{}, fmt.Errorf("%w: %q (want %q or %q)",
			ErrUnknownService, service, ServicePostgres, ServiceRedis)
	}
}

// baseRunArgs builds the run arguments shared by both services.
//
// # Description
//
// Produces `run -d --name <name> --label ship.build=<n>` plus the
// optional network flag and the port publication. Argument order is
// fixed so recorded commands stay reproducible.
//
// # Inputs
//
//   - spec: Partially built container spec (name and ports set)
//
// # Outputs
//
//   - []string: Common run arguments, without env vars or image
func (e *DefaultEngine) baseRunArgs(spec containerSpec) []string {
	args := []string{
		"run", "-d",
		"--name", spec.name,
		"--label", fmt.Sprintf("%s=%d", BuildLabelKey, e.config.BuildNumber),
	}
	if e.config.NetworkName != "" {
		args = append(args, "--network", e.config.NetworkName)
	}
	args = append(args, "-p", fmt.Sprintf("%d:%d", spec.hostPort, spec.containerPort))
	return args
}

// resolveServices returns the services to operate on.
//
// # Description
//
// Empty input means both managed services, postgres first so the
// database is available soonest for the migration stage.
//
// # Inputs
//
//   - services: Requested services (may be empty)
//
// # Outputs
//
//   - []string: Services to operate on
func (e *DefaultEngine) resolveServices(services []string) []string {
	if len(services) == 0 {
		return []string{ServicePostgres, ServiceRedis}
	}
	return services
}

// containerNameFor maps a service name to its container name.
//
// # Inputs
//
//   - service: "postgres" or "redis"
//
// # Outputs
//
//   - string: Build-derived container name
//   - error: ErrUnknownService for anything else
func (e *DefaultEngine) containerNameFor(service string) (string, error) {
	switch service {
	case ServicePostgres:
		return PostgresContainerName(e.config.BuildNumber), nil
	case ServiceRedis:
		return RedisContainerName(e.config.BuildNumber), nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)",
			ErrUnknownService, service, ServicePostgres, ServiceRedis)
	}
}

// serviceForContainer maps a container name back to its service.
//
// # Inputs
//
//   - name: Container name
//
// # Outputs
//
//   - string: Service name, or "" if the container is not managed
func (e *DefaultEngine) serviceForContainer(name string) string {
	switch name {
	case PostgresContainerName(e.config.BuildNumber):
		return ServicePostgres
	case RedisContainerName(e.config.BuildNumber):
		return ServiceRedis
	default:
		return ""
	}
}

// listRunningContainers returns names of this build's running containers.
//
// # Description
//
// Queries docker for running containers matching either managed name.
// Used to track which containers are running before/after stop phases.
// The docker name filter matches substrings, so the result is reduced
// to exact managed names; without that, build 7 would count containers
// from builds 70 through 79.
//
// # Inputs
//
//   - ctx: Context for cancellation
//
// # Outputs
//
//   - []string: Names of running managed containers
//   - error: If query fails
//
// # Example
//
//	running, err := e.listRunningContainers(ctx)
//	fmt.Printf("Found %d running containers\n", len(running))
func (e *DefaultEngine) listRunningContainers(ctx context.Context) ([]string, error) {
	args := []string{
		"ps",
		"--filter", fmt.Sprintf("name=%s", PostgresContainerName(e.config.BuildNumber)),
		"--filter", fmt.Sprintf("name=%s", RedisContainerName(e.config.BuildNumber)),
		"--filter", "status=running",
		"--format", "{{.Names}}",
	}

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, line := range e.parseLines(output.Stdout) {
		if e.serviceForContainer(line) != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// executeGracefulStop stops the named containers with a SIGTERM window.
//
// # Description
//
// Runs `docker stop -t <seconds>` for the given containers. Unlike the
// ps family, docker stop takes no filters; the names come from
// listRunningContainers.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - names: Containers to stop
//   - timeout: Time to wait for graceful shutdown
//
// # Outputs
//
//   - error: If the stop command fails
func (e *DefaultEngine) executeGracefulStop(ctx context.Context, names []string, timeout time.Duration) error {
	args := append([]string{"stop", "-t", fmt.Sprintf("%d", int(timeout.Seconds()))}, names...)
	_, err := e.runDocker(ctx, args, e.config.DefaultTimeout)
	return err
}

// executeForceStop stops the named containers immediately.
//
// # Description
//
// Runs `docker stop -t 0`, which sends SIGKILL without a grace period.
// Used when graceful stop leaves containers running.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - names: Containers to stop
//
// # Outputs
//
//   - error: If the stop command fails
func (e *DefaultEngine) executeForceStop(ctx context.Context, names []string) error {
	args := append([]string{"stop", "-t", "0"}, names...)
	_, err := e.runDocker(ctx, args, 30*time.Second)
	return err
}

// executeForceStopForCleanup force-stops containers during cleanup.
//
// # Description
//
// First cleanup step. Absent containers are expected here (the build
// may have failed before Up, or Down may have run already) and are not
// recorded as errors. Stopped names are counted from stdout.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - result: CleanupResult to record results and errors
//
// # Outputs
//
//   - None (modifies result in place)
func (e *DefaultEngine) executeForceStopForCleanup(ctx context.Context, result *CleanupResult) {
	args := append([]string{"stop", "-t", "0"}, e.ContainerNames()...)

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if output != nil {
		result.ContainersStopped = len(e.managedLines(output.Stdout))
	}
	if err != nil && (output == nil || !e.isNoSuchContainerError(output.Stderr)) {
		result.Errors = append(result.Errors, fmt.Sprintf("force stop: %v", err))
	}
}

// removeContainersByName removes the managed containers during cleanup.
//
// # Description
//
// Second cleanup step. Runs `docker rm -f -v` with both managed names.
// Absent containers are tolerated; removed names are counted from
// stdout.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - result: CleanupResult to record results and errors
//
// # Outputs
//
//   - None (modifies result in place)
func (e *DefaultEngine) removeContainersByName(ctx context.Context, result *CleanupResult) {
	args := append([]string{"rm", "-f", "-v"}, e.ContainerNames()...)

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if output != nil {
		removed := e.managedLines(output.Stdout)
		result.ContainerNames = append(result.ContainerNames, removed...)
		result.ContainersRemoved += len(removed)
	}
	if err != nil && (output == nil || !e.isNoSuchContainerError(output.Stderr)) {
		result.Errors = append(result.Errors, fmt.Sprintf("remove by name: %v", err))
	}
}

// removeContainersByLabel removes labeled strays during cleanup.
//
// # Description
//
// Third cleanup step. Lists containers carrying this build's label and
// force-removes them by ID. Catches containers that escaped the
// name-based pass (renamed by hand, or started by an interrupted run).
// Docker rm takes no filters, so this is a list-then-remove pair.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - result: CleanupResult to record results and errors
//
// # Outputs
//
//   - None (modifies result in place)
//
// # Limitations
//
//   - May have overlap with name-based removal (counted twice)
func (e *DefaultEngine) removeContainersByLabel(ctx context.Context, result *CleanupResult) {
	listArgs := []string{
		"ps", "-aq",
		"--filter", fmt.Sprintf("label=%s=%d", BuildLabelKey, e.config.BuildNumber),
	}

	output, err := e.runDocker(ctx, listArgs, 30*time.Second)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list by label: %v", err))
		return
	}

	ids := e.parseLines(output.Stdout)
	if len(ids) == 0 {
		return
	}

	rmArgs := append([]string{"rm", "-f", "-v"}, ids...)
	rmOutput, err := e.runDocker(ctx, rmArgs, 30*time.Second)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("remove by label: %v", err))
		return
	}

	removed := e.parseLines(rmOutput.Stdout)
	result.ContainerNames = append(result.ContainerNames, removed...)
	result.ContainersRemoved += len(removed)
}

// removeNetworkForCleanup removes the build network during cleanup.
//
// # Description
//
// Fourth cleanup step. No-op when no network is configured; an absent
// network is tolerated.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - result: CleanupResult to record results and errors
//
// # Outputs
//
//   - None (modifies result in place)
func (e *DefaultEngine) removeNetworkForCleanup(ctx context.Context, result *CleanupResult) {
	if e.config.NetworkName == "" {
		return
	}

	removed, err := e.removeNetwork(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("remove network: %v", err))
		return
	}
	result.NetworkRemoved = removed
}

// pruneDanglingImages prunes dangling image layers during cleanup.
//
// # Description
//
// Final cleanup step. Runs `docker image prune -f` and counts the
// "deleted:" lines in its output.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - result: CleanupResult to record results and errors
//
// # Outputs
//
//   - None (modifies result in place)
//
// # Limitations
//
//   - Daemon-wide: prunes dangling layers from any build, not just this
//     one
func (e *DefaultEngine) pruneDanglingImages(ctx context.Context, result *CleanupResult) {
	output, err := e.runDocker(ctx, []string{"image", "prune", "-f"}, 2*time.Minute)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("image prune: %v", err))
		return
	}

	for _, line := range e.parseLines(output.Stdout) {
		if strings.HasPrefix(line, "deleted:") {
			result.ImagesPruned++
		}
	}
}

// ensureNetwork creates the build network if it does not exist.
//
// # Description
//
// Runs `docker network create`. An "already exists" response is success;
// a crashed previous run may have left the network behind.
//
// # Inputs
//
//   - ctx: Context for cancellation
//
// # Outputs
//
//   - error: If creation fails for another reason
func (e *DefaultEngine) ensureNetwork(ctx context.Context) error {
	output, err := e.runDocker(ctx, []string{"network", "create", e.config.NetworkName}, 30*time.Second)
	if err != nil {
		if output != nil && strings.Contains(output.Stderr, "already exists") {
			return nil
		}
		return fmt.Errorf("creating network %s: %w", e.config.NetworkName, err)
	}
	return nil
}

// removeNetwork removes the build network.
//
// # Description
//
// Runs `docker network rm`. Returns false with nil error when the
// network does not exist.
//
// # Inputs
//
//   - ctx: Context for cancellation
//
// # Outputs
//
//   - bool: true if the network was removed
//   - error: If removal fails for a reason other than absence
func (e *DefaultEngine) removeNetwork(ctx context.Context) (bool, error) {
	output, err := e.runDocker(ctx, []string{"network", "rm", e.config.NetworkName}, 30*time.Second)
	if err != nil {
		if output != nil && strings.Contains(output.Stderr, "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// runDocker executes a docker command with captured output.
//
// # Description
//
// Runs docker through the process manager with a bounded timeout.
// The result is returned even on failure so callers can inspect stderr
// for daemon error classification. A missing docker binary is mapped to
// ErrDockerNotFound.
//
// # Inputs
//
//   - ctx: Context for cancellation
//   - args: Command arguments
//   - timeout: Command timeout
//
// # Outputs
//
//   - *RunResult: Contains stdout, stderr, exit code, duration
//   - error: If command fails or times out
//
// # Example
//
//	result, err := e.runDocker(ctx, []string{"ps", "-a"}, 30*time.Second)
//
// # Limitations
//
//   - Captures all output in memory (not suitable for streaming)
//
// # Assumptions
//
//   - docker binary is in PATH (ErrDockerNotFound otherwise)
func (e *DefaultEngine) runDocker(ctx context.Context, args []string, timeout time.Duration) (*RunResult, error) {
	start := time.Now()
	cmdStr := fmt.Sprintf("docker %s", strings.Join(args, " "))

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err := e.proc.RunInDir(execCtx, "", nil, "docker", args...)

	result := &RunResult{
		Success:  exitCode == 0 && err == nil,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return result, fmt.Errorf("%w: install docker or add it to PATH", ErrDockerNotFound)
		}
		return result, fmt.Errorf("docker command failed: %w", err)
	}
	if exitCode != 0 {
		return result, fmt.Errorf("docker command exited with code %d: %s", exitCode, stderr)
	}

	return result, nil
}

// parseContainerStatus parses docker ps JSON output to InfraStatus.
//
// # Description
//
// docker ps with `--format '{{json .}}'` emits one JSON object per
// line, not an array. Each line is decoded separately; rows whose name
// is not an exact managed name are dropped (the substring name filter
// lets neighboring builds leak in).
//
// # Inputs
//
//   - output: Raw line-delimited JSON from docker ps
//
// # Outputs
//
//   - *InfraStatus: Parsed status with container list and counts
//   - error: If JSON parsing fails
//
// # Example
//
//	status, err := e.parseContainerStatus(`{"Names":"postgres-test-7",...}`)
//
// # Limitations
//
//   - Health status extracted from Status string (may be fragile)
//   - Depends on the docker CLI JSON field names
func (e *DefaultEngine) parseContainerStatus(output string) (*InfraStatus, error) {
	status := &InfraStatus{
		Containers: []ContainerStatus{},
	}

	for _, line := range e.parseLines(output) {
		var row struct {
			ID        string `json:"ID"`
			Names     string `json:"Names"`
			State     string `json:"State"`
			Status    string `json:"Status"`
			Image     string `json:"Image"`
			Ports     string `json:"Ports"`
			CreatedAt string `json:"CreatedAt"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("failed to parse container JSON: %w", err)
		}

		service := e.serviceForContainer(row.Names)
		if service == "" {
			continue
		}

		container := ContainerStatus{
			Service:   service,
			Name:      row.Names,
			ID:        row.ID,
			State:     row.State,
			Image:     row.Image,
			Ports:     e.parsePortsString(row.Ports),
			CreatedAt: row.CreatedAt,
		}
		container.Healthy = e.parseHealthStatus(row.Status)

		status.Containers = append(status.Containers, container)
		e.updateStatusCounts(status, row.State, container.Healthy)
	}

	return status, nil
}

// updateStatusCounts updates the running/stopped/unhealthy counts.
//
// # Inputs
//
//   - status: InfraStatus to update
//   - state: Container state string
//   - healthy: Health status pointer (nil if no healthcheck)
//
// # Outputs
//
//   - None (modifies status in place)
func (e *DefaultEngine) updateStatusCounts(status *InfraStatus, state string, healthy *bool) {
	switch state {
	case "running":
		status.Running++
	case "exited", "created", "dead":
		status.Stopped++
	}
	if healthy != nil && !*healthy {
		status.Unhealthy++
	}
}

// parseHealthStatus extracts health status from a status string.
//
// # Description
//
// Parses the status string from docker ps to determine health.
// Looks for "healthy" or "unhealthy" in the string.
//
// # Inputs
//
//   - statusStr: Status string like "Up 2 hours (healthy)"
//
// # Outputs
//
//   - *bool: true if healthy, false if unhealthy, nil if no healthcheck
//
// # Example
//
//	health := e.parseHealthStatus("Up 2 hours (healthy)")
//	// *health == true
//
// # Limitations
//
//   - String-based parsing may break with different docker versions
func (e *DefaultEngine) parseHealthStatus(statusStr string) *bool {
	if strings.Contains(statusStr, "healthy") && !strings.Contains(statusStr, "unhealthy") {
		healthy := true
		return &healthy
	}
	if strings.Contains(statusStr, "unhealthy") {
		healthy := false
		return &healthy
	}
	return nil
}

// parsePortsString parses the docker ps Ports column.
//
// # Description
//
// docker ps reports ports as a comma-joined string like
// "0.0.0.0:5439->5432/tcp, [::]:5439->5432/tcp". Entries without a
// host mapping (exposed-only, like "5432/tcp") are skipped.
//
// # Inputs
//
//   - ports: Raw ports string
//
// # Outputs
//
//   - []PortMapping: Parsed mappings (empty for no published ports)
//
// # Example
//
//	mappings := e.parsePortsString("0.0.0.0:5439->5432/tcp")
//	// mappings[0].HostPort == 5439
//
// # Limitations
//
//   - Unparseable entries are skipped, not reported
func (e *DefaultEngine) parsePortsString(ports string) []PortMapping {
	mappings := []PortMapping{}

	for _, entry := range strings.Split(ports, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		arrow := strings.Index(entry, "->")
		if arrow < 0 {
			continue
		}

		hostSide := entry[:arrow]
		containerSide := entry[arrow+2:]

		protocol := "tcp"
		containerPortStr := containerSide
		if slash := strings.Index(containerSide, "/"); slash >= 0 {
			protocol = containerSide[slash+1:]
			containerPortStr = containerSide[:slash]
		}

		hostIP := ""
		hostPortStr := hostSide
		if colon := strings.LastIndex(hostSide, ":"); colon >= 0 {
			hostIP = hostSide[:colon]
			hostPortStr = hostSide[colon+1:]
		}

		hostPort, err := strconv.Atoi(hostPortStr)
		if err != nil {
			continue
		}
		containerPort, err := strconv.Atoi(containerPortStr)
		if err != nil {
			continue
		}

		mappings = append(mappings, PortMapping{
			HostIP:        hostIP,
			HostPort:      hostPort,
			ContainerPort: containerPort,
			Protocol:      protocol,
		})
	}

	return mappings
}

// sortedBuildArgs validates build args and returns sorted KEY=VALUE pairs.
//
// # Description
//
// Build args come in as a map; emitting them in sorted key order keeps
// the generated command line stable across runs.
//
// # Inputs
//
//   - buildArgs: Build argument map (may be nil)
//
// # Outputs
//
//   - []string: KEY=VALUE pairs in sorted key order
func (e *DefaultEngine) sortedBuildArgs(buildArgs map[string]string) []string {
	keys := make([]string, 0, len(buildArgs))
	for key := range buildArgs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, buildArgs[key]))
	}
	return pairs
}

// validateBuildOptions validates BuildOptions before execution.
//
// # Description
//
// Ensures required fields are present and build argument keys are
// well-formed. Malformed keys would otherwise splice extra flags into
// the docker command line.
//
// # Inputs
//
//   - opts: BuildOptions to validate
//
// # Outputs
//
//   - error: ErrInvalidConfig or ErrInvalidBuildArg if validation fails
func (e *DefaultEngine) validateBuildOptions(opts BuildOptions) error {
	if opts.ContextDir == "" {
		return fmt.Errorf("%w: build context directory is required", ErrInvalidConfig)
	}
	if len(opts.Tags) == 0 {
		return fmt.Errorf("%w: at least one image tag is required", ErrInvalidConfig)
	}
	for _, tag := range opts.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: image tags must not be blank", ErrInvalidConfig)
		}
	}
	for key := range opts.BuildArgs {
		if !buildArgKeyRegex.MatchString(key) {
			return fmt.Errorf("%w: key %q contains invalid characters (must match [a-zA-Z_][a-zA-Z0-9_]*)",
				ErrInvalidBuildArg, key)
		}
	}
	return nil
}

// managedLines filters output lines down to managed container names.
//
// # Inputs
//
//   - output: Raw command output
//
// # Outputs
//
//   - []string: Lines that are exact managed container names
func (e *DefaultEngine) managedLines(output string) []string {
	names := []string{}
	for _, line := range e.parseLines(output) {
		if e.serviceForContainer(line) != "" {
			names = append(names, line)
		}
	}
	return names
}

// isNoSuchContainerError checks stderr for an absent-container response.
//
// # Description
//
// Covers the daemon phrasing ("Error response from daemon: No such
// container: ...") and the CLI phrasing ("Error: No such container").
//
// # Inputs
//
//   - stderr: Captured standard error
//
// # Outputs
//
//   - bool: true if the error indicates the container does not exist
//
// # Limitations
//
//   - String-based detection may break with different docker versions
func (e *DefaultEngine) isNoSuchContainerError(stderr string) bool {
	return strings.Contains(stderr, "No such container")
}

// resolveTimeout returns the timeout to use.
//
// # Inputs
//
//   - timeout: Requested timeout (may be zero)
//
// # Outputs
//
//   - time.Duration: Provided timeout, or DefaultTimeout when zero
func (e *DefaultEngine) resolveTimeout(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return e.config.DefaultTimeout
	}
	return timeout
}

// resolveGracefulTimeout returns the graceful timeout to use.
//
// # Inputs
//
//   - timeout: Requested timeout (may be zero)
//
// # Outputs
//
//   - time.Duration: Provided timeout, or 10 seconds when zero
func (e *DefaultEngine) resolveGracefulTimeout(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return 10 * time.Second
	}
	return timeout
}

// parseLines splits output into non-empty lines.
//
// # Inputs
//
//   - output: Raw output string
//
// # Outputs
//
//   - []string: Non-empty trimmed lines
//
// # Example
//
//	lines := e.parseLines("line1\n\nline2\n")
//	// lines == ["line1", "line2"]
func (e *DefaultEngine) parseLines(output string) []string {
	lines := []string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockEngine is a test double for Engine.
//
// # Description
//
// Provides a configurable mock implementation for testing.
// Each method can be configured with a custom function; unconfigured
// methods return success values. Mutating calls are tracked for
// verification. Login passwords are never recorded.
//
// # Example
//
//	mock := &MockEngine{
//	    UpFunc: func(ctx context.Context, opts UpOptions) (*UpResult, error) {
//	        return &UpResult{}, nil
//	    },
//	}
//	result, _ := mock.Up(ctx, UpOptions{})
//	assert.Equal(t, 1, len(mock.UpCalls))
type MockEngine struct {
	UpFunc             func(context.Context, UpOptions) (*UpResult, error)
	DownFunc           func(context.Context, DownOptions) (*DownResult, error)
	StopFunc           func(context.Context, StopOptions) (*StopResult, error)
	LogsFunc           func(context.Context, LogsOptions, io.Writer) error
	StatusFunc         func(context.Context) (*InfraStatus, error)
	ForceCleanupFunc   func(context.Context) (*CleanupResult, error)
	BuildImageFunc     func(context.Context, BuildOptions, io.Writer) (*BuildResult, error)
	LoginFunc          func(context.Context, LoginOptions) (*RunResult, error)
	PushImageFunc      func(context.Context, string) (*RunResult, error)
	ContainerNamesFunc func() []string

	UpCalls      []UpOptions
	DownCalls    []DownOptions
	StopCalls    []StopOptions
	CleanupCalls int
	BuildCalls   []BuildOptions
	LoginCalls   []string
	PushCalls    []string
	mu           sync.Mutex
}

// Compile-time check that MockEngine implements Engine.
var _ Engine = (*MockEngine)(nil)

// Up implements Engine.
func (m *MockEngine) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	m.mu.Lock()
	m.UpCalls = append(m.UpCalls, opts)
	m.mu.Unlock()

	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &UpResult{Started: []StartedContainer{}}, nil
}

// Down implements Engine.
func (m *MockEngine) Down(ctx context.Context, opts DownOptions) (*DownResult, error) {
	m.mu.Lock()
	m.DownCalls = append(m.DownCalls, opts)
	m.mu.Unlock()

	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &DownResult{Removed: []string{}, AlreadyGone: []string{}}, nil
}

// Stop implements Engine.
func (m *MockEngine) Stop(ctx context.Context, opts StopOptions) (*StopResult, error) {
	m.mu.Lock()
	m.StopCalls = append(m.StopCalls, opts)
	m.mu.Unlock()

	if m.StopFunc != nil {
		return m.StopFunc(ctx, opts)
	}
	return &StopResult{}, nil
}

// Logs implements Engine.
func (m *MockEngine) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, opts, w)
	}
	return nil
}

// Status implements Engine.
func (m *MockEngine) Status(ctx context.Context) (*InfraStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &InfraStatus{Containers: []ContainerStatus{}}, nil
}

// ForceCleanup implements Engine.
func (m *MockEngine) ForceCleanup(ctx context.Context) (*CleanupResult, error) {
	m.mu.Lock()
	m.CleanupCalls++
	m.mu.Unlock()

	if m.ForceCleanupFunc != nil {
		return m.ForceCleanupFunc(ctx)
	}
	return &CleanupResult{}, nil
}

// BuildImage implements Engine.
func (m *MockEngine) BuildImage(ctx context.Context, opts BuildOptions, w io.Writer) (*BuildResult, error) {
	m.mu.Lock()
	m.BuildCalls = append(m.BuildCalls, opts)
	m.mu.Unlock()

	if m.BuildImageFunc != nil {
		return m.BuildImageFunc(ctx, opts, w)
	}
	return &BuildResult{Success: true, Tags: opts.Tags}, nil
}

// Login implements Engine. Only the username is recorded.
func (m *MockEngine) Login(ctx context.Context, opts LoginOptions) (*RunResult, error) {
	m.mu.Lock()
	m.LoginCalls = append(m.LoginCalls, opts.Username)
	m.mu.Unlock()

	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, opts)
	}
	return &RunResult{Success: true}, nil
}

// PushImage implements Engine.
func (m *MockEngine) PushImage(ctx context.Context, ref string) (*RunResult, error) {
	m.mu.Lock()
	m.PushCalls = append(m.PushCalls, ref)
	m.mu.Unlock()

	if m.PushImageFunc != nil {
		return m.PushImageFunc(ctx, ref)
	}
	return &RunResult{Success: true}, nil
}

// ContainerNames implements Engine.
func (m *MockEngine) ContainerNames() []string {
	if m.ContainerNamesFunc != nil {
		return m.ContainerNamesFunc()
	}
	return []string{}
}
