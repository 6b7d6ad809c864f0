package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

// FortiManager talks to a Fortinet FortiManager over its JSON-RPC API.
// FortiManager owns every Fortinet device once a FortiGate is registered,
// so the routing policy selects it without an inventory existence check.
type FortiManager struct {
	endpoint *endpoints.Endpoint
	gateway  inventory.Gateway
	api      *apiClient
	logger   *slog.Logger

	sessionMu     sync.Mutex
	session       string
	sessionExpiry time.Time
}

// FortiManager drops admin sessions after its idle timeout, 15 minutes out
// of the box. Re-login happens before that so a stale token never degrades
// the centralized path.
const fmgSessionLifetime = 10 * time.Minute

// NewFortiManager creates a connector bound to the given endpoint.
func NewFortiManager(ep *endpoints.Endpoint, gateway inventory.Gateway, logger *slog.Logger) *FortiManager {
	return &FortiManager{
		endpoint: ep,
		gateway:  gateway,
		api:      newAPIClient(ep),
		logger:   logger.With("component", "fortimanager"),
	}
}

func (f *FortiManager) Method() string { return MethodFortiManager }

type fmgRequest struct {
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  []fmgParams `json:"params"`
	Session string      `json:"session,omitempty"`
}

type fmgParams struct {
	URL  string `json:"url"`
	Data any    `json:"data,omitempty"`
}

type fmgResponse struct {
	Result []struct {
		Status struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"status"`
		URL  string          `json:"url"`
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Session string `json:"session"`
}

// rpc issues one JSON-RPC call and returns the first result's payload.
func (f *FortiManager) rpc(ctx context.Context, method, rpcURL string, data any, session string) (json.RawMessage, string, error) {
	req := fmgRequest{
		ID:      1,
		Method:  method,
		Params:  []fmgParams{{URL: rpcURL, Data: data}},
		Session: session,
	}

	var resp fmgResponse
	status, err := f.api.doJSON(ctx, http.MethodPost, "/jsonrpc", nil, req, &resp)
	if err != nil {
		return nil, "", err
	}
	if status != http.StatusOK {
		return nil, "", fmt.Errorf("FortiManager returned status %d", status)
	}
	if len(resp.Result) == 0 {
		return nil, "", fmt.Errorf("FortiManager returned empty result")
	}
	if code := resp.Result[0].Status.Code; code != 0 {
		return nil, "", fmt.Errorf("FortiManager error %d: %s", code, resp.Result[0].Status.Message)
	}
	return resp.Result[0].Data, resp.Session, nil
}

func (f *FortiManager) login(ctx context.Context) (string, error) {
	f.sessionMu.Lock()
	defer f.sessionMu.Unlock()

	if f.session != "" && time.Now().Before(f.sessionExpiry) {
		return f.session, nil
	}

	data := map[string]string{
		"user":   f.endpoint.Credentials.Username,
		"passwd": f.endpoint.Credentials.Password,
	}
	_, session, err := f.rpc(ctx, "exec", "/sys/login/user", data, "")
	if err != nil {
		return "", err
	}
	if session == "" {
		return "", fmt.Errorf("FortiManager login returned no session")
	}

	f.session = session
	f.sessionExpiry = time.Now().Add(fmgSessionLifetime)
	return session, nil
}

type fmgDevice struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Serial   string `json:"sn"`
	ConnMode int    `json:"conn_status"`
}

// Connect resolves the device entry in the FortiManager device database.
func (f *FortiManager) Connect(ctx context.Context, deviceID string) Result {
	dev, err := f.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		return failure(MethodFortiManager, "inventory lookup failed: %v", err)
	}
	if dev == nil {
		return failure(MethodFortiManager, "device %s not found in inventory", deviceID)
	}

	session, err := f.login(ctx)
	if err != nil {
		return failure(MethodFortiManager, "FortiManager connection error: %v", err)
	}

	raw, _, err := f.rpc(ctx, "get", "/dvmdb/device/"+dev.Name, nil, session)
	if err != nil {
		return failure(MethodFortiManager, "Device %s not found in FortiManager: %v", dev.Name, err)
	}

	var entry fmgDevice
	if err := json.Unmarshal(raw, &entry); err != nil {
		return failure(MethodFortiManager, "FortiManager returned malformed device entry: %v", err)
	}

	return success(MethodFortiManager, f.endpoint.BaseURL, map[string]any{
		"fmg_device_name": entry.Name,
		"serial_number":   entry.Serial,
		"device_ip":       entry.IP,
	})
}

// ExecuteCommand proxies a CLI command to the managed FortiGate.
func (f *FortiManager) ExecuteCommand(ctx context.Context, deviceID, command string) Result {
	conn := f.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	name, _ := conn.Data["fmg_device_name"].(string)

	session, err := f.login(ctx)
	if err != nil {
		return failure(MethodFortiManager, "command execution error: %v", err)
	}

	data := map[string]any{
		"action":   "get",
		"resource": "/api/v2/monitor/system/status",
		"target":   []string{"device/" + name},
		"payload":  map[string]string{"cli": command},
	}
	raw, _, err := f.rpc(ctx, "exec", "/sys/proxy/json", data, session)
	if err != nil {
		return failure(MethodFortiManager, "command execution error: %v", err)
	}

	return success(MethodFortiManager, f.endpoint.BaseURL, map[string]any{
		"fmg_device_name": name,
		"command":         command,
		"output":          string(raw),
	})
}

// DeployConfiguration stages the configuration as a CLI script and executes
// it against the device's root vdom.
func (f *FortiManager) DeployConfiguration(ctx context.Context, deviceID, config string, opts DeployOptions) Result {
	conn := f.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}
	name, _ := conn.Data["fmg_device_name"].(string)

	session, err := f.login(ctx)
	if err != nil {
		return failure(MethodFortiManager, "configuration deployment error: %v", err)
	}

	scriptName := opts.TemplateName
	if scriptName == "" {
		scriptName = "devconn_" + name
	}

	createData := map[string]any{
		"name":    scriptName,
		"type":    "cli",
		"content": config,
		"target":  "remote_device",
	}
	if _, _, err := f.rpc(ctx, "set", "/dvmdb/adom/root/script", createData, session); err != nil {
		return failure(MethodFortiManager, "configuration deployment error: %v", err)
	}

	execData := map[string]any{
		"adom":   "root",
		"script": scriptName,
		"scope":  []map[string]string{{"name": name, "vdom": "root"}},
	}
	raw, _, err := f.rpc(ctx, "exec", "/dvmdb/adom/root/script/execute", execData, session)
	if err != nil {
		return failure(MethodFortiManager, "configuration deployment error: %v", err)
	}

	var task struct {
		Task int `json:"task"`
	}
	_ = json.Unmarshal(raw, &task)

	return success(MethodFortiManager, f.endpoint.BaseURL, map[string]any{
		"fmg_device_name": name,
		"script_name":     scriptName,
		"task_id":         task.Task,
	})
}
