package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

// CatalystCenter talks to a Cisco Catalyst Center (DNA Center) controller.
// Devices are resolved in its inventory by management IP.
type CatalystCenter struct {
	endpoint *endpoints.Endpoint
	gateway  inventory.Gateway
	api      *apiClient
	logger   *slog.Logger

	// tokenMu guards the cached X-Auth-Token, which Catalyst Center
	// issues with a one hour lifetime.
	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewCatalystCenter creates a connector bound to the given endpoint.
func NewCatalystCenter(ep *endpoints.Endpoint, gateway inventory.Gateway, logger *slog.Logger) *CatalystCenter {
	return &CatalystCenter{
		endpoint: ep,
		gateway:  gateway,
		api:      newAPIClient(ep),
		logger:   logger.With("component", "catalyst_center"),
	}
}

func (c *CatalystCenter) Method() string { return MethodCatalystCenter }

type catalystTokenResponse struct {
	Token string `json:"Token"`
}

type catalystDevice struct {
	ID                  string `json:"id"`
	Hostname            string `json:"hostname"`
	ManagementIPAddress string `json:"managementIpAddress"`
	ReachabilityStatus  string `json:"reachabilityStatus"`
}

type catalystDeviceResponse struct {
	Response catalystDevice `json:"response"`
}

// authToken returns a valid X-Auth-Token, fetching a fresh one via the
// basic-auth token exchange when the cached token is missing or stale.
func (c *CatalystCenter) authToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	header := http.Header{}
	header.Set("Authorization", basicAuthHeader(c.endpoint.Credentials.Username, c.endpoint.Credentials.Password))

	var resp catalystTokenResponse
	status, err := c.api.doJSON(ctx, http.MethodPost, "/dna/system/api/v1/auth/token", header, nil, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.Token == "" {
		return "", fmt.Errorf("token request rejected with status %d", status)
	}

	c.token = resp.Token
	c.tokenExpiry = time.Now().Add(50 * time.Minute)
	return c.token, nil
}

// findDevice resolves a device in the Catalyst Center inventory by its
// management IP. A nil result with nil error means the device is unknown.
func (c *CatalystCenter) findDevice(ctx context.Context, managementIP string) (*catalystDevice, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("X-Auth-Token", token)

	var resp catalystDeviceResponse
	path := "/dna/intent/api/v1/network-device/ip-address/" + managementIP
	status, err := c.api.doJSON(ctx, http.MethodGet, path, header, nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("inventory lookup failed with status %d", status)
	}
	if resp.Response.ID == "" {
		return nil, nil
	}
	return &resp.Response, nil
}

// DeviceKnown reports whether the device exists in the controller's
// inventory. Any lookup error counts as not known.
func (c *CatalystCenter) DeviceKnown(ctx context.Context, deviceID string) bool {
	dev, err := c.gateway.GetDevice(ctx, deviceID)
	if err != nil || dev == nil || dev.ManagementIP == "" {
		return false
	}
	found, err := c.findDevice(ctx, dev.ManagementIP)
	if err != nil {
		c.logger.Debug("Catalyst Center existence check failed",
			"device_id", deviceID,
			"error", err.Error(),
		)
		return false
	}
	return found != nil
}

// Connect resolves the device in Catalyst Center and reports reachability.
func (c *CatalystCenter) Connect(ctx context.Context, deviceID string) Result {
	dev, err := c.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		return failure(MethodCatalystCenter, "inventory lookup failed: %v", err)
	}
	if dev == nil {
		return failure(MethodCatalystCenter, "device %s not found in inventory", deviceID)
	}
	if dev.ManagementIP == "" {
		return failure(MethodCatalystCenter, "device %s has no management IP", deviceID)
	}

	found, err := c.findDevice(ctx, dev.ManagementIP)
	if err != nil {
		return failure(MethodCatalystCenter, "Catalyst Center connection error: %v", err)
	}
	if found == nil {
		return failure(MethodCatalystCenter, "Device %s not found in Catalyst Center", dev.ManagementIP)
	}

	return success(MethodCatalystCenter, c.endpoint.BaseURL, map[string]any{
		"catalyst_device_id": found.ID,
		"hostname":           found.Hostname,
		"reachability":       found.ReachabilityStatus,
	})
}

type catalystCommandRequest struct {
	DeviceUUIDs []string `json:"deviceUuids"`
	Commands    []string `json:"commands"`
}

type catalystTaskResponse struct {
	Response struct {
		TaskID string `json:"taskId"`
		URL    string `json:"url"`
	} `json:"response"`
}

// ExecuteCommand submits the command to the controller's command runner.
func (c *CatalystCenter) ExecuteCommand(ctx context.Context, deviceID, command string) Result {
	conn := c.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	catalystID, _ := conn.Data["catalyst_device_id"].(string)

	token, err := c.authToken(ctx)
	if err != nil {
		return failure(MethodCatalystCenter, "command execution error: %v", err)
	}
	header := http.Header{}
	header.Set("X-Auth-Token", token)

	body := catalystCommandRequest{
		DeviceUUIDs: []string{catalystID},
		Commands:    []string{command},
	}
	var resp catalystTaskResponse
	status, err := c.api.doJSON(ctx, http.MethodPost, "/dna/intent/api/v1/network-device-poller/cli/read-request", header, body, &resp)
	if err != nil {
		return failure(MethodCatalystCenter, "command execution error: %v", err)
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return failure(MethodCatalystCenter, "command runner rejected request with status %d", status)
	}

	return success(MethodCatalystCenter, c.endpoint.BaseURL, map[string]any{
		"catalyst_device_id": catalystID,
		"command":            command,
		"task_id":            resp.Response.TaskID,
	})
}

type catalystDeployRequest struct {
	TemplateName string               `json:"templateName"`
	TargetInfo   []catalystTargetInfo `json:"targetInfo"`
	Params       map[string]string    `json:"params,omitempty"`
}

type catalystTargetInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type catalystDeployResponse struct {
	DeploymentID string `json:"deploymentId"`
	Status       string `json:"status"`
}

// DeployConfiguration pushes the configuration through the controller's
// template programmer.
func (c *CatalystCenter) DeployConfiguration(ctx context.Context, deviceID, config string, opts DeployOptions) Result {
	conn := c.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	catalystID, _ := conn.Data["catalyst_device_id"].(string)

	token, err := c.authToken(ctx)
	if err != nil {
		return failure(MethodCatalystCenter, "configuration deployment error: %v", err)
	}
	header := http.Header{}
	header.Set("X-Auth-Token", token)

	templateName := opts.TemplateName
	if templateName == "" {
		templateName = "custom_config"
	}
	body := catalystDeployRequest{
		TemplateName: templateName,
		TargetInfo: []catalystTargetInfo{
			{ID: catalystID, Type: "MANAGED_DEVICE_UUID"},
		},
		Params: map[string]string{"config": config},
	}

	var resp catalystDeployResponse
	status, err := c.api.doJSON(ctx, http.MethodPost, "/dna/intent/api/v1/template-programmer/template/deploy", header, body, &resp)
	if err != nil {
		return failure(MethodCatalystCenter, "configuration deployment error: %v", err)
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return failure(MethodCatalystCenter, "template deployment rejected with status %d", status)
	}

	return success(MethodCatalystCenter, c.endpoint.BaseURL, map[string]any{
		"catalyst_device_id": catalystID,
		"deployment_id":      resp.DeploymentID,
		"template_name":      templateName,
	})
}
