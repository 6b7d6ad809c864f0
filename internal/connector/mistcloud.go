package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

// MistCloud talks to the Juniper Mist cloud. Devices are resolved in the
// org inventory by MAC address, so a device without a recorded MAC cannot
// be managed through this connector.
type MistCloud struct {
	endpoint *endpoints.Endpoint
	gateway  inventory.Gateway
	api      *apiClient
	logger   *slog.Logger
}

// NewMistCloud creates a connector bound to the given endpoint.
func NewMistCloud(ep *endpoints.Endpoint, gateway inventory.Gateway, logger *slog.Logger) *MistCloud {
	return &MistCloud{
		endpoint: ep,
		gateway:  gateway,
		api:      newAPIClient(ep),
		logger:   logger.With("component", "mist_cloud"),
	}
}

func (m *MistCloud) Method() string { return MethodMistCloud }

func (m *MistCloud) authHeader() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Token "+m.endpoint.Credentials.Token)
	return header
}

type mistDevice struct {
	ID     string `json:"id"`
	MAC    string `json:"mac"`
	Name   string `json:"name"`
	SiteID string `json:"site_id"`
	Type   string `json:"type"`
}

// findDevice resolves a device in the Mist org inventory by MAC.
func (m *MistCloud) findDevice(ctx context.Context, mac string) (*mistDevice, error) {
	path := fmt.Sprintf("/api/v1/orgs/%s/inventory", m.endpoint.Credentials.OrgID)
	query := url.Values{"mac": {normalizeMAC(mac)}}

	var devices []mistDevice
	status, err := m.api.doJSON(ctx, http.MethodGet, path+"?"+query.Encode(), m.authHeader(), nil, &devices)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("org inventory lookup failed with status %d", status)
	}
	if len(devices) == 0 {
		return nil, nil
	}
	return &devices[0], nil
}

// Connect resolves the device in the Mist org inventory.
func (m *MistCloud) Connect(ctx context.Context, deviceID string) Result {
	dev, err := m.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		return failure(MethodMistCloud, "inventory lookup failed: %v", err)
	}
	if dev == nil {
		return failure(MethodMistCloud, "device %s not found in inventory", deviceID)
	}
	if dev.MACAddress == "" {
		return failure(MethodMistCloud, "device MAC address required for Mist Cloud connection")
	}

	found, err := m.findDevice(ctx, dev.MACAddress)
	if err != nil {
		return failure(MethodMistCloud, "Mist Cloud connection error: %v", err)
	}
	if found == nil {
		return failure(MethodMistCloud, "Device %s not found in Mist Cloud", dev.MACAddress)
	}

	return success(MethodMistCloud, m.endpoint.BaseURL, map[string]any{
		"mist_device_id": found.ID,
		"site_id":        found.SiteID,
		"name":           found.Name,
	})
}

// ExecuteCommand runs a Mist device utility operation. Mist does not expose
// arbitrary CLI, so the command names one of its utility actions (restart,
// bounce-port, locate and friends).
func (m *MistCloud) ExecuteCommand(ctx context.Context, deviceID, command string) Result {
	conn := m.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	mistID, _ := conn.Data["mist_device_id"].(string)
	siteID, _ := conn.Data["site_id"].(string)

	path := fmt.Sprintf("/api/v1/sites/%s/devices/%s/%s", siteID, mistID, url.PathEscape(command))
	var resp map[string]any
	status, err := m.api.doJSON(ctx, http.MethodPost, path, m.authHeader(), nil, &resp)
	if err != nil {
		return failure(MethodMistCloud, "Mist operation error: %v", err)
	}
	if status != http.StatusOK {
		return failure(MethodMistCloud, "Mist operation %q rejected with status %d", command, status)
	}

	return success(MethodMistCloud, m.endpoint.BaseURL, map[string]any{
		"mist_device_id": mistID,
		"operation":      command,
		"result":         resp,
	})
}

// DeployConfiguration updates the Mist device settings. Mist configuration
// is JSON, so a non-JSON payload is rejected before anything is sent.
func (m *MistCloud) DeployConfiguration(ctx context.Context, deviceID, config string, opts DeployOptions) Result {
	conn := m.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	mistID, _ := conn.Data["mist_device_id"].(string)
	siteID, _ := conn.Data["site_id"].(string)

	var settings map[string]any
	if err := json.Unmarshal([]byte(config), &settings); err != nil {
		return failure(MethodMistCloud, "Mist configuration must be a JSON object: %v", err)
	}

	path := fmt.Sprintf("/api/v1/sites/%s/devices/%s", siteID, mistID)
	var resp map[string]any
	status, err := m.api.doJSON(ctx, http.MethodPut, path, m.authHeader(), settings, &resp)
	if err != nil {
		return failure(MethodMistCloud, "Mist configuration update error: %v", err)
	}
	if status != http.StatusOK {
		return failure(MethodMistCloud, "Mist configuration update rejected with status %d", status)
	}

	data := map[string]any{
		"mist_device_id": mistID,
		"site_id":        siteID,
	}
	if opts.TemplateName != "" {
		data["template_name"] = opts.TemplateName
	}
	return success(MethodMistCloud, m.endpoint.BaseURL, data)
}

// DeviceKnown reports whether the device's MAC is present in the Mist org
// inventory. Errors count as not known.
func (m *MistCloud) DeviceKnown(ctx context.Context, deviceID string) bool {
	dev, err := m.gateway.GetDevice(ctx, deviceID)
	if err != nil || dev == nil || dev.MACAddress == "" {
		return false
	}
	found, err := m.findDevice(ctx, dev.MACAddress)
	if err != nil {
		m.logger.Debug("Mist existence check failed",
			"device_id", deviceID,
			"error", err.Error(),
		)
		return false
	}
	return found != nil
}

// normalizeMAC lowercases and strips separators, the format Mist keys on.
func normalizeMAC(mac string) string {
	out := make([]byte, 0, len(mac))
	for i := 0; i < len(mac); i++ {
		c := mac[i]
		switch {
		case c >= 'A' && c <= 'F':
			out = append(out, c+'a'-'A')
		case c == ':' || c == '-' || c == '.':
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
