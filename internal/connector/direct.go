package connector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/devconn/devconn/internal/config"
	"github.com/devconn/devconn/internal/inventory"
)

// Transport names reported in result data.
const (
	transportSSH     = "ssh"
	transportNETCONF = "netconf"
	transportEAPI    = "eapi"
	transportWinRM   = "winrm"
)

// Direct opens sessions straight to the managed device, bypassing any
// controller. The transport is picked from the device's platform slug:
// NETCONF for Junos, eAPI for Arista EOS, WinRM for Windows hosts, SSH for
// everything else. Sessions are opened per call and released on every exit
// path; nothing is pooled.
type Direct struct {
	gateway inventory.Gateway
	cfg     config.DirectConfig
	logger  *slog.Logger
}

// NewDirect creates the direct connector.
func NewDirect(gateway inventory.Gateway, cfg config.DirectConfig, logger *slog.Logger) *Direct {
	return &Direct{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With("component", "direct"),
	}
}

func (d *Direct) Method() string { return MethodDirect }

// resolve loads the device and its credentials. A device without a
// management IP cannot be reached directly; that surfaces as a failure
// result, not an error.
func (d *Direct) resolve(ctx context.Context, deviceID string) (*inventory.Device, *inventory.Secrets, *Result) {
	dev, err := d.gateway.GetDevice(ctx, deviceID)
	if err != nil {
		res := failure(MethodDirect, "inventory lookup failed: %v", err)
		return nil, nil, &res
	}
	if dev == nil {
		res := failure(MethodDirect, "device %s not found in inventory", deviceID)
		return nil, nil, &res
	}
	if dev.ManagementIP == "" {
		res := failure(MethodDirect, "Device management IP not available")
		return nil, nil, &res
	}

	sec, err := d.gateway.GetSecrets(ctx, deviceID)
	if err != nil {
		d.logger.Warn("Secrets lookup failed, using platform defaults",
			"device_id", deviceID,
			"error", err.Error(),
		)
		sec = nil
	}
	if sec == nil {
		sec = inventory.DefaultSecrets(dev.Platform)
	}
	return dev, sec, nil
}

func transportFor(platform string) string {
	switch {
	case strings.HasPrefix(platform, "juniper"):
		return transportNETCONF
	case platform == "arista-eos":
		return transportEAPI
	case strings.HasPrefix(platform, "windows"):
		return transportWinRM
	default:
		return transportSSH
	}
}

func (d *Direct) portFor(transport string, sec *inventory.Secrets) int {
	if sec.Port > 0 {
		return sec.Port
	}
	switch transport {
	case transportWinRM:
		return d.cfg.WinRMPort
	case transportEAPI:
		return 443
	default:
		return d.cfg.SSHPort
	}
}

// Connect tests reachability only: a TCP dial against the transport port,
// plus an SNMP probe when the device has a recorded community string. No
// session state survives the call.
func (d *Direct) Connect(ctx context.Context, deviceID string) Result {
	dev, sec, failed := d.resolve(ctx, deviceID)
	if failed != nil {
		return *failed
	}

	transport := transportFor(dev.Platform)
	port := d.portFor(transport, sec)
	address := net.JoinHostPort(dev.ManagementIP, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: d.cfg.GetDialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return failure(MethodDirect, "connection failed to %s: %v", address, err)
	}
	conn.Close()

	data := map[string]any{
		"host":      dev.ManagementIP,
		"port":      port,
		"transport": transport,
	}

	if sec.Community != "" {
		sysDescr, sysName, err := snmpProbe(dev.ManagementIP, d.cfg.SNMPPort, sec.Community, d.cfg.GetDialTimeout())
		if err != nil {
			d.logger.Debug("SNMP probe failed",
				"device_id", deviceID,
				"error", err.Error(),
			)
		} else {
			data["snmp_sys_descr"] = sysDescr
			data["snmp_sys_name"] = sysName
		}
	}

	return success(MethodDirect, dev.ManagementIP, data)
}

// ExecuteCommand opens a session, runs the command, and closes the session.
func (d *Direct) ExecuteCommand(ctx context.Context, deviceID, command string) Result {
	conn := d.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}

	dev, sec, failed := d.resolve(ctx, deviceID)
	if failed != nil {
		return *failed
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.GetSessionTimeout())
	defer cancel()

	transport := transportFor(dev.Platform)
	output, err := d.runCommand(ctx, dev, sec, transport, command)
	if err != nil {
		return failure(MethodDirect, "command execution error on %s: %v", dev.ManagementIP, err)
	}

	return success(MethodDirect, dev.ManagementIP, map[string]any{
		"transport": transport,
		"command":   command,
		"output":    output,
	})
}

// DeployConfiguration applies the configuration line by line inside the
// platform's configuration mode. When requested, the running configuration
// is captured first and attached to the result.
func (d *Direct) DeployConfiguration(ctx context.Context, deviceID, cfgPayload string, opts DeployOptions) Result {
	conn := d.Connect(ctx, deviceID)
	if !conn.Success {
		return conn
	}

	dev, sec, failed := d.resolve(ctx, deviceID)
	if failed != nil {
		return *failed
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.GetSessionTimeout())
	defer cancel()

	transport := transportFor(dev.Platform)
	data := map[string]any{"transport": transport}
	if opts.TemplateName != "" {
		data["template_name"] = opts.TemplateName
	}

	if opts.BackupBeforeChange {
		backup, err := d.runCommand(ctx, dev, sec, transport, backupCommand(dev.Platform))
		if err != nil {
			return failure(MethodDirect, "pre-change backup failed on %s: %v", dev.ManagementIP, err)
		}
		data["backup"] = backup
	}

	lines := configLines(cfgPayload)
	if len(lines) == 0 {
		return failure(MethodDirect, "configuration payload is empty")
	}

	output, err := d.applyConfig(ctx, dev, sec, transport, lines)
	if err != nil {
		res := failure(MethodDirect, "configuration deployment error on %s: %v", dev.ManagementIP, err)
		res.Data = data // keep the backup for debugging
		return res
	}

	data["lines_applied"] = len(lines)
	data["output"] = output
	return success(MethodDirect, dev.ManagementIP, data)
}

func (d *Direct) runCommand(ctx context.Context, dev *inventory.Device, sec *inventory.Secrets, transport, command string) (string, error) {
	switch transport {
	case transportWinRM:
		return runWinRM(dev.ManagementIP, d.portFor(transport, sec), sec, command, d.cfg.GetSessionTimeout())
	case transportEAPI:
		return d.runEAPI(ctx, dev, sec, []string{command})
	case transportNETCONF:
		client, err := d.dial(ctx, dev, sec)
		if err != nil {
			return "", err
		}
		defer client.Close()
		rpc := fmt.Sprintf(`<rpc><command format="text">%s</command></rpc>`, command)
		return execNETCONF(ctx, client, rpc)
	default:
		client, err := d.dial(ctx, dev, sec)
		if err != nil {
			return "", err
		}
		defer client.Close()
		return runSSHCommand(ctx, client, command)
	}
}

func (d *Direct) applyConfig(ctx context.Context, dev *inventory.Device, sec *inventory.Secrets, transport string, lines []string) (string, error) {
	switch transport {
	case transportWinRM:
		return runWinRM(dev.ManagementIP, d.portFor(transport, sec), sec, strings.Join(lines, "; "), d.cfg.GetSessionTimeout())
	case transportEAPI:
		cmds := append([]string{"configure"}, lines...)
		cmds = append(cmds, "write memory")
		return d.runEAPI(ctx, dev, sec, cmds)
	case transportNETCONF:
		client, err := d.dial(ctx, dev, sec)
		if err != nil {
			return "", err
		}
		defer client.Close()
		rpc := fmt.Sprintf(
			`<rpc><edit-config><target><candidate/></target><config-text><configuration-text>%s</configuration-text></config-text></edit-config></rpc>`,
			strings.Join(lines, "\n"),
		)
		if _, err := execNETCONF(ctx, client, rpc); err != nil {
			return "", err
		}
		return execNETCONF(ctx, client, `<rpc><commit/></rpc>`)
	default:
		client, err := d.dial(ctx, dev, sec)
		if err != nil {
			return "", err
		}
		defer client.Close()
		return runSSHShell(ctx, client, wrapConfigMode(dev.Platform, lines))
	}
}

func (d *Direct) dial(ctx context.Context, dev *inventory.Device, sec *inventory.Secrets) (*ssh.Client, error) {
	config, err := buildSSHConfig(sec, d.cfg.GetDialTimeout())
	if err != nil {
		return nil, err
	}
	address := net.JoinHostPort(dev.ManagementIP, fmt.Sprintf("%d", d.portFor(transportSSH, sec)))
	return dialSSH(ctx, address, config)
}

// runEAPI executes commands through the Arista eAPI JSON-RPC endpoint on
// the device itself.
func (d *Direct) runEAPI(ctx context.Context, dev *inventory.Device, sec *inventory.Secrets, commands []string) (string, error) {
	body := map[string]any{
		"jsonrpc": "2.0",
		"method":  "runCmds",
		"params": map[string]any{
			"version": 1,
			"cmds":    commands,
			"format":  "text",
		},
		"id": "devconn",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode eAPI request: %w", err)
	}

	target := fmt.Sprintf("https://%s/command-api", net.JoinHostPort(dev.ManagementIP, fmt.Sprintf("%d", d.portFor(transportEAPI, sec))))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build eAPI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(sec.Username, sec.Password)

	client := &http.Client{
		Timeout: d.cfg.GetSessionTimeout(),
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("eAPI request failed: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result []map[string]any `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("failed to decode eAPI response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("eAPI error: %s", rpcResp.Error.Message)
	}

	var out strings.Builder
	for _, result := range rpcResp.Result {
		if text, ok := result["output"].(string); ok {
			out.WriteString(text)
		}
	}
	return out.String(), nil
}

// configLines splits a configuration payload into non-empty lines.
func configLines(payload string) []string {
	var lines []string
	for _, line := range strings.Split(payload, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// wrapConfigMode brackets configuration lines with the platform's enter and
// exit commands.
func wrapConfigMode(platform string, lines []string) []string {
	switch {
	case strings.HasPrefix(platform, "juniper"):
		wrapped := append([]string{"configure"}, lines...)
		return append(wrapped, "commit and-quit")
	default:
		wrapped := append([]string{"configure terminal"}, lines...)
		return append(wrapped, "end", "write memory")
	}
}

func backupCommand(platform string) string {
	if strings.HasPrefix(platform, "juniper") {
		return "show configuration | display set"
	}
	return "show running-config"
}
