package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/devconn/devconn/internal/audit"
	"github.com/devconn/devconn/internal/config"
	"github.com/devconn/devconn/internal/connector"
	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
	"github.com/devconn/devconn/internal/routing"
)

// gaugedConnector tracks how many deployments run at once.
type gaugedConnector struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	deployCalls int
}

func (g *gaugedConnector) Method() string { return connector.MethodDirect }

func (g *gaugedConnector) Connect(ctx context.Context, deviceID string) connector.Result {
	return connector.Result{Success: true, Method: connector.MethodDirect}
}

func (g *gaugedConnector) ExecuteCommand(ctx context.Context, deviceID, command string) connector.Result {
	return connector.Result{Success: true, Method: connector.MethodDirect}
}

func (g *gaugedConnector) DeployConfiguration(ctx context.Context, deviceID, cfg string, opts connector.DeployOptions) connector.Result {
	g.mu.Lock()
	g.inFlight++
	g.deployCalls++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	return connector.Result{Success: true, Method: connector.MethodDirect, Data: map[string]any{"device": deviceID}}
}

func newBatchManager(direct connector.Connector, concurrency int) *Manager {
	gw := inventory.NewMockGateway()
	for i := 0; i < 16; i++ {
		id := fmt.Sprintf("dev%d", i)
		gw.AddDevice(&inventory.Device{
			ID:           id,
			Name:         id,
			ManagementIP: fmt.Sprintf("10.0.0.%d", i+1),
			Platform:     "cisco-ios",
			Manufacturer: "cisco",
		})
	}
	policy := routing.NewPolicy(gw, endpoints.NewRegistry(), nil, slog.Default())
	return New(policy, nil, direct, audit.NopRecorder{}, slog.Default(), config.ManagerConfig{BatchConcurrency: concurrency})
}

func TestDeployBatchBoundedConcurrency(t *testing.T) {
	direct := &gaugedConnector{}
	m := newBatchManager(direct, 5)

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("dev%d", i)
	}

	results := m.DeployBatch(context.Background(), ids, "hostname test", connector.DeployOptions{})

	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	for _, id := range ids {
		res, ok := results[id]
		if !ok {
			t.Errorf("missing result for %s", id)
			continue
		}
		if !res.Success {
			t.Errorf("%s: expected success, got %s", id, res.Message)
		}
	}
	if direct.maxInFlight > 5 {
		t.Errorf("concurrency exceeded bound: %d in flight", direct.maxInFlight)
	}
}

func TestDeployBatchDeduplicatesDevices(t *testing.T) {
	direct := &gaugedConnector{}
	m := newBatchManager(direct, 5)

	results := m.DeployBatch(context.Background(), []string{"dev1", "dev2", "dev1", "dev2", "dev1"}, "hostname test", connector.DeployOptions{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results after dedupe, got %d", len(results))
	}
	if direct.deployCalls != 2 {
		t.Errorf("expected 2 deployments, got %d", direct.deployCalls)
	}
}

func TestDeployBatchCancelledContext(t *testing.T) {
	direct := &gaugedConnector{}
	m := newBatchManager(direct, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := m.DeployBatch(ctx, []string{"dev1", "dev2", "dev3"}, "hostname test", connector.DeployOptions{})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// With the context already cancelled, most devices never acquire a
	// slot; every entry must still be reported.
	for id, res := range results {
		if res.Success {
			continue
		}
		if res.Message == "" {
			t.Errorf("%s: failed result should carry a message", id)
		}
	}
}
