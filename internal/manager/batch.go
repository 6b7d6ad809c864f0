package manager

import (
	"context"
	"sync"

	"github.com/devconn/devconn/internal/connector"
)

// DeployBatch applies the same configuration to many devices with a bounded
// concurrency window, so a large rollout cannot overwhelm device CLIs or
// controller APIs. Duplicate device IDs are collapsed, which also guarantees
// at most one in-flight operation per device. Results are keyed by device
// ID; completion order is not meaningful.
func (m *Manager) DeployBatch(ctx context.Context, deviceIDs []string, cfgPayload string, opts connector.DeployOptions) map[string]connector.Result {
	unique := make([]string, 0, len(deviceIDs))
	seen := make(map[string]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	m.logger.Info("Starting batch configuration deployment",
		"devices", len(unique),
		"concurrency", m.batchConcurrency,
		"template", opts.TemplateName,
	)

	results := make(map[string]connector.Result, len(unique))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.batchConcurrency)

	for _, deviceID := range unique {
		wg.Add(1)
		go func(deviceID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				results[deviceID] = connector.Result{
					Success: false,
					Method:  m.direct.Method(),
					Message: "batch cancelled: " + ctx.Err().Error(),
				}
				mu.Unlock()
				return
			}

			res := m.DeployDeviceConfiguration(ctx, deviceID, cfgPayload, opts)
			mu.Lock()
			results[deviceID] = res
			mu.Unlock()
		}(deviceID)
	}

	wg.Wait()

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	m.logger.Info("Batch configuration deployment finished",
		"devices", len(unique),
		"succeeded", succeeded,
		"failed", len(unique)-succeeded,
	)
	return results
}
