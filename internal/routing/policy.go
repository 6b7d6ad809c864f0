// Package routing decides which transport should be used to reach a managed
// device: a centralized vendor controller when one is configured and claims
// the device, or a direct connection otherwise.
package routing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/devconn/devconn/internal/connector"
	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

// Decision is the outcome of Decide. When UseCentralizedAPI is false,
// EndpointName is empty and the direct connector handles the device.
type Decision struct {
	UseCentralizedAPI bool   `json:"use_centralized_api"`
	EndpointName      string `json:"endpoint_name,omitempty"`
}

var direct = Decision{}

// Policy maps a device to the endpoint that should manage it. It keeps no
// per-device state and is computed fresh on every call, so a device moving
// in or out of a controller takes effect immediately. Safe for concurrent
// use.
type Policy struct {
	gateway  inventory.Gateway
	registry *endpoints.Registry
	checkers map[string]connector.InventoryChecker
	logger   *slog.Logger
}

// NewPolicy creates a routing policy. checkers maps endpoint names to the
// existence checks of their connectors; endpoints without a checker are
// selected on vendor match alone.
func NewPolicy(
	gateway inventory.Gateway,
	registry *endpoints.Registry,
	checkers map[string]connector.InventoryChecker,
	logger *slog.Logger,
) *Policy {
	return &Policy{
		gateway:  gateway,
		registry: registry,
		checkers: checkers,
		logger:   logger.With("component", "routing"),
	}
}

// Decide evaluates the vendor cascade in priority order, first match wins.
// Every failure mode degrades toward direct connection: an unknown device,
// a failed inventory lookup, and a negative or failed existence check all
// fall through rather than asserting a centralized path.
func (p *Policy) Decide(ctx context.Context, deviceID string) Decision {
	dev, err := p.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		p.logger.Warn("Routing degraded to direct: inventory lookup failed",
			"device_id", deviceID,
			"error", err.Error(),
		)
		return direct
	}
	if dev == nil {
		return direct
	}
	return p.decideFor(ctx, dev)
}

func (p *Policy) decideFor(ctx context.Context, dev *inventory.Device) Decision {
	switch dev.Manufacturer {
	case "cisco":
		if p.endpointClaims(ctx, "catalyst_center", dev) {
			return Decision{UseCentralizedAPI: true, EndpointName: "catalyst_center"}
		}
	case "juniper":
		if p.registry.Has("mist_cloud") && isWirelessRole(dev.Role) {
			return Decision{UseCentralizedAPI: true, EndpointName: "mist_cloud"}
		}
	case "arista":
		if p.endpointClaims(ctx, "arista_cvp", dev) {
			return Decision{UseCentralizedAPI: true, EndpointName: "arista_cvp"}
		}
	case "fortinet":
		// FortiManager is authoritative for all Fortinet devices once
		// configured; no existence check.
		if p.registry.Has("fortimanager") {
			return Decision{UseCentralizedAPI: true, EndpointName: "fortimanager"}
		}
	case "paloaltonetworks":
		if p.registry.Has("panorama") {
			return Decision{UseCentralizedAPI: true, EndpointName: "panorama"}
		}
	}
	return direct
}

// endpointClaims reports whether the named endpoint is configured and its
// remote system actually knows the device.
func (p *Policy) endpointClaims(ctx context.Context, name string, dev *inventory.Device) bool {
	if !p.registry.Has(name) {
		return false
	}
	checker, ok := p.checkers[name]
	if !ok {
		return true
	}
	known := checker.DeviceKnown(ctx, dev.ID)
	if !known {
		p.logger.Debug("Device not present in controller inventory",
			"device_id", dev.ID,
			"endpoint", name,
		)
	}
	return known
}

func isWirelessRole(role string) bool {
	return strings.Contains(role, "access-point") || strings.Contains(role, "wireless")
}
