package inventory

import (
	"context"
	"sync"
)

// MockGateway is an in-memory Gateway for tests.
type MockGateway struct {
	mu      sync.RWMutex
	devices map[string]*Device
	secrets map[string]*Secrets

	// Err, when set, is returned by every lookup to simulate an
	// unavailable inventory system.
	Err error
}

// NewMockGateway creates an empty mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		devices: make(map[string]*Device),
		secrets: make(map[string]*Secrets),
	}
}

// AddDevice registers a device, keyed by its ID.
func (m *MockGateway) AddDevice(dev *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[dev.ID] = dev
}

// AddSecrets registers secrets for a device ID.
func (m *MockGateway) AddSecrets(deviceID string, sec *Secrets) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[deviceID] = sec
}

func (m *MockGateway) GetDevice(_ context.Context, deviceID string) (*Device, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devices[deviceID], nil
}

func (m *MockGateway) GetSecrets(_ context.Context, deviceID string) (*Secrets, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.secrets[deviceID], nil
}
