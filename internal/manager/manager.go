// Package manager is the single entry point workflow callers use to reach
// devices. It hides the routing decision and the fallback discipline: the
// policy-selected connector is tried first, and when a centralized path
// fails the same operation is retried through the direct connector exactly
// once.
package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devconn/devconn/internal/audit"
	"github.com/devconn/devconn/internal/config"
	"github.com/devconn/devconn/internal/connector"
	"github.com/devconn/devconn/internal/routing"
)

// Manager orchestrates connector selection, execution and fallback. One
// connector instance per endpoint lives for the process lifetime.
type Manager struct {
	policy      *routing.Policy
	centralized map[string]connector.Connector
	direct      connector.Connector
	recorder    audit.Recorder
	logger      *slog.Logger

	batchConcurrency int
	testTimeout      time.Duration
	fallbackTimeout  time.Duration
}

// New creates a connection manager. centralized maps endpoint names to
// their connectors; direct is the universal fallback.
func New(
	policy *routing.Policy,
	centralized map[string]connector.Connector,
	direct connector.Connector,
	recorder audit.Recorder,
	logger *slog.Logger,
	cfg config.ManagerConfig,
) *Manager {
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	testTimeout := cfg.GetTestTimeout()
	if testTimeout <= 0 {
		testTimeout = 15 * time.Second
	}
	fallbackTimeout := cfg.GetFallbackTimeout()
	if fallbackTimeout <= 0 {
		fallbackTimeout = 30 * time.Second
	}
	return &Manager{
		policy:           policy,
		centralized:      centralized,
		direct:           direct,
		recorder:         recorder,
		logger:           logger.With("component", "manager"),
		batchConcurrency: concurrency,
		testTimeout:      testTimeout,
		fallbackTimeout:  fallbackTimeout,
	}
}

// ConnectToDevice connects to the device through the optimal path.
func (m *Manager) ConnectToDevice(ctx context.Context, deviceID string) connector.Result {
	return m.run(ctx, deviceID, "connect", func(ctx context.Context, c connector.Connector) connector.Result {
		return c.Connect(ctx, deviceID)
	})
}

// ExecuteDeviceCommand runs a command on the device through the optimal
// path.
func (m *Manager) ExecuteDeviceCommand(ctx context.Context, deviceID, command string) connector.Result {
	return m.run(ctx, deviceID, "execute_command", func(ctx context.Context, c connector.Connector) connector.Result {
		return c.ExecuteCommand(ctx, deviceID, command)
	})
}

// DeployDeviceConfiguration applies configuration to the device through
// the optimal path.
func (m *Manager) DeployDeviceConfiguration(ctx context.Context, deviceID, cfgPayload string, opts connector.DeployOptions) connector.Result {
	return m.run(ctx, deviceID, "deploy_configuration", func(ctx context.Context, c connector.Connector) connector.Result {
		return c.DeployConfiguration(ctx, deviceID, cfgPayload, opts)
	})
}

// run routes the device, executes the operation on the selected connector,
// and falls back to direct exactly once when a centralized attempt fails.
// Direct failures are terminal.
func (m *Manager) run(ctx context.Context, deviceID, operation string, op func(context.Context, connector.Connector) connector.Result) connector.Result {
	start := time.Now()

	selected := m.selectConnector(ctx, deviceID)
	result := op(ctx, selected)
	fellBack := false

	if !result.Success && selected.Method() != m.direct.Method() {
		m.logger.Warn("Centralized operation failed, falling back to direct connection",
			"device_id", deviceID,
			"operation", operation,
			"method", selected.Method(),
			"message", result.Message,
		)
		// The fallback attempt runs under its own deadline so a wedged
		// direct path cannot extend an already-failed request forever.
		fbCtx, cancel := context.WithTimeout(ctx, m.fallbackTimeout)
		result = op(fbCtx, m.direct)
		cancel()
		fellBack = true
		if result.Data == nil {
			result.Data = map[string]any{}
		}
		result.Data["fell_back"] = true
	}

	m.record(ctx, deviceID, operation, result, fellBack, time.Since(start))

	if result.Success {
		m.logger.Info("Device operation completed",
			"device_id", deviceID,
			"operation", operation,
			"method", result.Method,
			"fell_back", fellBack,
		)
	} else {
		m.logger.Warn("Device operation failed",
			"device_id", deviceID,
			"operation", operation,
			"method", result.Method,
			"fell_back", fellBack,
			"message", result.Message,
		)
	}
	return result
}

// selectConnector resolves the routing decision into a connector. A
// centralized decision naming an endpoint with no registered connector
// degrades to direct.
func (m *Manager) selectConnector(ctx context.Context, deviceID string) connector.Connector {
	decision := m.policy.Decide(ctx, deviceID)
	if decision.UseCentralizedAPI {
		if c, ok := m.centralized[decision.EndpointName]; ok {
			return c
		}
		m.logger.Warn("Routing selected an endpoint with no connector, using direct",
			"device_id", deviceID,
			"endpoint", decision.EndpointName,
		)
	}
	return m.direct
}

// TestDeviceConnectivity is the diagnostic superset of the single-path
// operations: it attempts the centralized method (when routing selects one)
// and the direct method concurrently, and returns both outcomes keyed by
// method name. The direct entry is always present.
func (m *Manager) TestDeviceConnectivity(ctx context.Context, deviceID string) map[string]connector.Result {
	ctx, cancel := context.WithTimeout(ctx, m.testTimeout)
	defer cancel()

	results := make(map[string]connector.Result)
	var mu sync.Mutex
	var wg sync.WaitGroup

	attempt := func(c connector.Connector) {
		defer wg.Done()
		res := c.Connect(ctx, deviceID)
		mu.Lock()
		results[c.Method()] = res
		mu.Unlock()
	}

	decision := m.policy.Decide(ctx, deviceID)
	if decision.UseCentralizedAPI {
		if c, ok := m.centralized[decision.EndpointName]; ok {
			wg.Add(1)
			go attempt(c)
		}
	}

	wg.Add(1)
	go attempt(m.direct)

	wg.Wait()
	return results
}

func (m *Manager) record(ctx context.Context, deviceID, operation string, result connector.Result, fellBack bool, elapsed time.Duration) {
	m.recorder.Record(ctx, audit.Attempt{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		Operation:  operation,
		Method:     result.Method,
		Endpoint:   result.Endpoint,
		Success:    result.Success,
		FellBack:   fellBack,
		Message:    result.Message,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	})
}
