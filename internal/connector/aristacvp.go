package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

// AristaCVP talks to an Arista CloudVision Portal. Devices are resolved in
// the CVP inventory by serial number, falling back to management IP.
// Configuration is deployed as a configlet applied through a provisioning
// task.
type AristaCVP struct {
	endpoint *endpoints.Endpoint
	gateway  inventory.Gateway
	api      *apiClient
	logger   *slog.Logger

	sessionMu     sync.Mutex
	sessionID     string
	sessionExpiry time.Time
}

// CVP invalidates idle sessions server side. The cookie is refreshed well
// inside the default idle window so a cached session is never presented
// after the portal has dropped it.
const cvpSessionLifetime = 25 * time.Minute

// NewAristaCVP creates a connector bound to the given endpoint.
func NewAristaCVP(ep *endpoints.Endpoint, gateway inventory.Gateway, logger *slog.Logger) *AristaCVP {
	return &AristaCVP{
		endpoint: ep,
		gateway:  gateway,
		api:      newAPIClient(ep),
		logger:   logger.With("component", "arista_cvp"),
	}
}

func (a *AristaCVP) Method() string { return MethodAristaCVP }

type cvpLoginResponse struct {
	SessionID string `json:"sessionId"`
}

func (a *AristaCVP) login(ctx context.Context) (string, error) {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()

	if a.sessionID != "" && time.Now().Before(a.sessionExpiry) {
		return a.sessionID, nil
	}

	body := map[string]string{
		"userId":   a.endpoint.Credentials.Username,
		"password": a.endpoint.Credentials.Password,
	}
	var resp cvpLoginResponse
	status, err := a.api.doJSON(ctx, http.MethodPost, "/cvpservice/login/authenticate.do", nil, body, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.SessionID == "" {
		return "", fmt.Errorf("CVP login rejected with status %d", status)
	}

	a.sessionID = resp.SessionID
	a.sessionExpiry = time.Now().Add(cvpSessionLifetime)
	return a.sessionID, nil
}

func (a *AristaCVP) sessionHeader(sessionID string) http.Header {
	header := http.Header{}
	header.Set("Cookie", "session_id="+sessionID)
	return header
}

type cvpDevice struct {
	SystemMacAddress string `json:"systemMacAddress"`
	SerialNumber     string `json:"serialNumber"`
	Hostname         string `json:"hostname"`
	IPAddress        string `json:"ipAddress"`
	ComplianceCode   string `json:"complianceCode"`
}

type cvpInventoryResponse struct {
	Devices []cvpDevice `json:"netElementList"`
}

// findDevice resolves a device in the CVP inventory.
func (a *AristaCVP) findDevice(ctx context.Context, dev *inventory.Device) (*cvpDevice, error) {
	sessionID, err := a.login(ctx)
	if err != nil {
		return nil, err
	}

	var resp cvpInventoryResponse
	status, err := a.api.doJSON(ctx, http.MethodGet, "/cvpservice/inventory/devices", a.sessionHeader(sessionID), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("CVP inventory lookup failed with status %d", status)
	}

	for i := range resp.Devices {
		candidate := &resp.Devices[i]
		if dev.SerialNumber != "" && strings.EqualFold(candidate.SerialNumber, dev.SerialNumber) {
			return candidate, nil
		}
		if dev.ManagementIP != "" && candidate.IPAddress == dev.ManagementIP {
			return candidate, nil
		}
	}
	return nil, nil
}

// Connect resolves the device in the CVP inventory.
func (a *AristaCVP) Connect(ctx context.Context, deviceID string) Result {
	dev, err := a.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		return failure(MethodAristaCVP, "inventory lookup failed: %v", err)
	}
	if dev == nil {
		return failure(MethodAristaCVP, "device %s not found in inventory", deviceID)
	}

	found, err := a.findDevice(ctx, dev)
	if err != nil {
		return failure(MethodAristaCVP, "Arista CVP connection error: %v", err)
	}
	if found == nil {
		return failure(MethodAristaCVP, "Device %s not found in Arista CVP", dev.Name)
	}

	return success(MethodAristaCVP, a.endpoint.BaseURL, map[string]any{
		"cvp_system_mac": found.SystemMacAddress,
		"serial_number":  found.SerialNumber,
		"hostname":       found.Hostname,
		"compliance":     found.ComplianceCode,
	})
}

type cvpCommandResponse struct {
	Output string `json:"output"`
}

// ExecuteCommand runs a show command against the device through CVP's
// device interaction service.
func (a *AristaCVP) ExecuteCommand(ctx context.Context, deviceID, command string) Result {
	conn := a.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	systemMac, _ := conn.Data["cvp_system_mac"].(string)

	sessionID, err := a.login(ctx)
	if err != nil {
		return failure(MethodAristaCVP, "command execution error: %v", err)
	}

	body := map[string]any{
		"deviceId": systemMac,
		"commands": []string{command},
	}
	var resp cvpCommandResponse
	status, err := a.api.doJSON(ctx, http.MethodPost, "/cvpservice/device/runCommands.do", a.sessionHeader(sessionID), body, &resp)
	if err != nil {
		return failure(MethodAristaCVP, "command execution error: %v", err)
	}
	if status != http.StatusOK {
		return failure(MethodAristaCVP, "CVP rejected command with status %d", status)
	}

	return success(MethodAristaCVP, a.endpoint.BaseURL, map[string]any{
		"cvp_system_mac": systemMac,
		"command":        command,
		"output":         resp.Output,
	})
}

type cvpConfigletResponse struct {
	Data struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"data"`
}

type cvpTaskResponse struct {
	Data struct {
		TaskIDs []string `json:"taskIds"`
	} `json:"data"`
}

// DeployConfiguration saves the configuration as a configlet and applies it
// to the device, producing a CVP provisioning task.
func (a *AristaCVP) DeployConfiguration(ctx context.Context, deviceID, config string, opts DeployOptions) Result {
	conn := a.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	systemMac, _ := conn.Data["cvp_system_mac"].(string)
	hostname, _ := conn.Data["hostname"].(string)

	sessionID, err := a.login(ctx)
	if err != nil {
		return failure(MethodAristaCVP, "configuration deployment error: %v", err)
	}
	header := a.sessionHeader(sessionID)

	configletName := opts.TemplateName
	if configletName == "" {
		configletName = "devconn_" + hostname
	}

	addBody := map[string]string{
		"name":   configletName,
		"config": config,
	}
	var configlet cvpConfigletResponse
	status, err := a.api.doJSON(ctx, http.MethodPost, "/cvpservice/configlet/addConfiglet.do", header, addBody, &configlet)
	if err != nil {
		return failure(MethodAristaCVP, "configuration deployment error: %v", err)
	}
	if status != http.StatusOK {
		return failure(MethodAristaCVP, "CVP rejected configlet with status %d", status)
	}

	applyBody := map[string]any{
		"deviceId":      systemMac,
		"configletKeys": []string{configlet.Data.Key},
	}
	var task cvpTaskResponse
	status, err = a.api.doJSON(ctx, http.MethodPost, "/cvpservice/provisioning/applyConfiglet.do", header, applyBody, &task)
	if err != nil {
		return failure(MethodAristaCVP, "configuration deployment error: %v", err)
	}
	if status != http.StatusOK {
		return failure(MethodAristaCVP, "CVP rejected configlet apply with status %d", status)
	}

	return success(MethodAristaCVP, a.endpoint.BaseURL, map[string]any{
		"cvp_system_mac": systemMac,
		"configlet_key":  configlet.Data.Key,
		"configlet_name": configletName,
		"task_ids":       task.Data.TaskIDs,
	})
}

// DeviceKnown reports whether the device exists in the CVP inventory.
// Errors count as not known.
func (a *AristaCVP) DeviceKnown(ctx context.Context, deviceID string) bool {
	dev, err := a.gateway.GetDevice(ctx, deviceID)
	if err != nil || dev == nil {
		return false
	}
	found, err := a.findDevice(ctx, dev)
	if err != nil {
		a.logger.Debug("CVP existence check failed",
			"device_id", deviceID,
			"error", err.Error(),
		)
		return false
	}
	return found != nil
}
