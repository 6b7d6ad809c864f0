// Package connector implements the transports used to reach managed
// devices: one connector per centralized management API (Catalyst Center,
// Mist Cloud, CloudVision, FortiManager, Panorama) plus a direct connector
// that opens sessions straight to the device.
//
// Every operation returns a Result. Expected failure modes (unreachable
// endpoint, auth rejection, unknown device, timeout) are reported as
// Result{Success: false}; they never escape a connector as an error or a
// panic. Callers depend on that for fallback handling.
package connector

import (
	"context"
	"fmt"
)

// Method identifiers reported in Result.Method.
const (
	MethodCatalystCenter = "catalyst_center"
	MethodMistCloud      = "mist_cloud"
	MethodAristaCVP      = "arista_cvp"
	MethodFortiManager   = "fortimanager"
	MethodPanorama       = "panorama"
	MethodDirect         = "direct_ssh"
)

// Result is the uniform outcome of a connector operation.
type Result struct {
	Success  bool           `json:"success"`
	Method   string         `json:"method"`
	Endpoint string         `json:"endpoint,omitempty"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// DeployOptions carries optional deployment behaviour.
type DeployOptions struct {
	// BackupBeforeChange captures the device's running configuration
	// before applying the new one, where the transport supports it.
	BackupBeforeChange bool
	// TemplateName labels the deployment for traceability.
	TemplateName string
}

// Connector is the polymorphic capability set every transport implements.
// Connect validates reachability without changing configuration and is safe
// to call repeatedly. ExecuteCommand and DeployConfiguration connect first
// and abort without side effects when that fails.
type Connector interface {
	Method() string
	Connect(ctx context.Context, deviceID string) Result
	ExecuteCommand(ctx context.Context, deviceID, command string) Result
	DeployConfiguration(ctx context.Context, deviceID, config string, opts DeployOptions) Result
}

// InventoryChecker is implemented by connectors whose remote system keeps
// its own device inventory. The routing policy uses it to confirm a device
// is actually present before selecting the centralized path. Lookup errors
// must be reported as "not known", never propagated.
type InventoryChecker interface {
	DeviceKnown(ctx context.Context, deviceID string) bool
}

func failure(method, format string, args ...any) Result {
	return Result{
		Success: false,
		Method:  method,
		Message: fmt.Sprintf(format, args...),
	}
}

func success(method, endpoint string, data map[string]any) Result {
	return Result{
		Success:  true,
		Method:   method,
		Endpoint: endpoint,
		Data:     data,
	}
}
