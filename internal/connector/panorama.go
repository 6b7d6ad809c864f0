package connector

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

// Panorama talks to a Palo Alto Panorama over its XML API. Managed
// firewalls are addressed by serial number; configuration changes go
// through a targeted commit.
type Panorama struct {
	endpoint *endpoints.Endpoint
	gateway  inventory.Gateway
	api      *apiClient
	logger   *slog.Logger
}

// NewPanorama creates a connector bound to the given endpoint.
func NewPanorama(ep *endpoints.Endpoint, gateway inventory.Gateway, logger *slog.Logger) *Panorama {
	return &Panorama{
		endpoint: ep,
		gateway:  gateway,
		api:      newAPIClient(ep),
		logger:   logger.With("component", "panorama"),
	}
}

func (p *Panorama) Method() string { return MethodPanorama }

type panoramaResponse struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status,attr"`
	Result  struct {
		Devices struct {
			Entries []panoramaDevice `xml:"entry"`
		} `xml:"devices"`
		Job   string `xml:"job"`
		Inner string `xml:",chardata"`
	} `xml:"result"`
	Msg struct {
		Line string `xml:"line"`
	} `xml:"msg"`
}

type panoramaDevice struct {
	Serial    string `xml:"serial"`
	Hostname  string `xml:"hostname"`
	IPAddress string `xml:"ip-address"`
	Connected string `xml:"connected"`
}

// call issues one XML API request and parses the envelope.
func (p *Panorama) call(ctx context.Context, query url.Values) (*panoramaResponse, error) {
	query.Set("key", p.endpoint.Credentials.APIKey)

	data, status, err := p.api.getRaw(ctx, "/api/", query)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("Panorama returned status %d", status)
	}

	var resp panoramaResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Panorama response: %w", err)
	}
	if resp.Status != "success" {
		msg := resp.Msg.Line
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("Panorama request failed: %s", msg)
	}
	return &resp, nil
}

// findDevice resolves a managed firewall by serial, falling back to
// management IP.
func (p *Panorama) findDevice(ctx context.Context, dev *inventory.Device) (*panoramaDevice, error) {
	query := url.Values{
		"type": {"op"},
		"cmd":  {"<show><devices><all/></devices></show>"},
	}
	resp, err := p.call(ctx, query)
	if err != nil {
		return nil, err
	}

	for i := range resp.Result.Devices.Entries {
		candidate := &resp.Result.Devices.Entries[i]
		if dev.SerialNumber != "" && strings.EqualFold(candidate.Serial, dev.SerialNumber) {
			return candidate, nil
		}
		if dev.ManagementIP != "" && candidate.IPAddress == dev.ManagementIP {
			return candidate, nil
		}
	}
	return nil, nil
}

// Connect resolves the firewall among Panorama's managed devices.
func (p *Panorama) Connect(ctx context.Context, deviceID string) Result {
	dev, err := p.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		return failure(MethodPanorama, "inventory lookup failed: %v", err)
	}
	if dev == nil {
		return failure(MethodPanorama, "device %s not found in inventory", deviceID)
	}

	found, err := p.findDevice(ctx, dev)
	if err != nil {
		return failure(MethodPanorama, "Panorama connection error: %v", err)
	}
	if found == nil {
		return failure(MethodPanorama, "Device %s not found in Panorama", dev.Name)
	}

	return success(MethodPanorama, p.endpoint.BaseURL, map[string]any{
		"panorama_serial": found.Serial,
		"hostname":        found.Hostname,
		"connected":       found.Connected == "yes",
	})
}

// ExecuteCommand runs an operational command targeted at the firewall.
func (p *Panorama) ExecuteCommand(ctx context.Context, deviceID, command string) Result {
	conn := p.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	serial, _ := conn.Data["panorama_serial"].(string)

	query := url.Values{
		"type":   {"op"},
		"cmd":    {command},
		"target": {serial},
	}
	resp, err := p.call(ctx, query)
	if err != nil {
		return failure(MethodPanorama, "command execution error: %v", err)
	}

	return success(MethodPanorama, p.endpoint.BaseURL, map[string]any{
		"panorama_serial": serial,
		"command":         command,
		"output":          strings.TrimSpace(resp.Result.Inner),
	})
}

// splitConfigNode separates one configuration line into the node xpath and
// the XML element payload. The element is everything from the first
// space-prefixed "<" onward; xpaths carry no embedded spaces.
func splitConfigNode(line string) (xpath, element string, ok bool) {
	idx := strings.Index(line, " <")
	if idx < 0 {
		return "", "", false
	}
	xpath = strings.TrimSpace(line[:idx])
	element = strings.TrimSpace(line[idx:])
	if xpath == "" || element == "" {
		return "", "", false
	}
	return xpath, element, true
}

// DeployConfiguration sets configuration nodes and commits them to the
// targeted firewall. Each non-empty payload line pairs a node xpath with
// its XML element, for example:
//
//	/config/devices/entry/deviceconfig/system <hostname>fw1</hostname>
//
// The commit job ID is returned for tracking.
func (p *Panorama) DeployConfiguration(ctx context.Context, deviceID, config string, opts DeployOptions) Result {
	conn := p.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	serial, _ := conn.Data["panorama_serial"].(string)

	for _, line := range strings.Split(config, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		xpath, element, ok := splitConfigNode(line)
		if !ok {
			return failure(MethodPanorama, "configuration line %q must pair an xpath with an XML element", line)
		}
		query := url.Values{
			"type":    {"config"},
			"action":  {"set"},
			"xpath":   {xpath},
			"element": {element},
			"target":  {serial},
		}
		if _, err := p.call(ctx, query); err != nil {
			return failure(MethodPanorama, "configuration deployment error: %v", err)
		}
	}

	commitQuery := url.Values{
		"type": {"commit"},
		"cmd":  {fmt.Sprintf("<commit-all><shared-policy><device-group><entry name=%q/></device-group></shared-policy></commit-all>", serial)},
	}
	resp, err := p.call(ctx, commitQuery)
	if err != nil {
		return failure(MethodPanorama, "commit failed: %v", err)
	}

	data := map[string]any{
		"panorama_serial": serial,
		"commit_job":      resp.Result.Job,
	}
	if opts.TemplateName != "" {
		data["template_name"] = opts.TemplateName
	}
	return success(MethodPanorama, p.endpoint.BaseURL, data)
}
