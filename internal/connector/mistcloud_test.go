package connector

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
)

func mistEndpoint(baseURL string) *endpoints.Endpoint {
	return &endpoints.Endpoint{
		Name:        "mist_cloud",
		DisplayName: "Juniper Mist Cloud",
		Kind:        endpoints.KindMistCloud,
		BaseURL:     baseURL,
		AuthMethod:  endpoints.AuthToken,
		Credentials: endpoints.Credentials{Token: "tok-1", OrgID: "org-1"},
		Enabled:     true,
	}
}

func mistGateway() *inventory.MockGateway {
	gw := inventory.NewMockGateway()
	gw.AddDevice(&inventory.Device{
		ID:           "ap1",
		Name:         "ap1",
		ManagementIP: "10.1.0.5",
		Platform:     "juniper-mist",
		Manufacturer: "juniper",
		Role:         "access-point",
		MACAddress:   "AA:BB:CC:DD:EE:FF",
	})
	gw.AddDevice(&inventory.Device{
		ID:           "ap2",
		Name:         "ap2",
		ManagementIP: "10.1.0.6",
		Platform:     "juniper-mist",
		Manufacturer: "juniper",
		Role:         "access-point",
	})
	return gw
}

func newMistServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/api/v1/orgs/org-1/inventory":
			if r.URL.Query().Get("mac") == "aabbccddeeff" {
				json.NewEncoder(w).Encode([]map[string]string{
					{"id": "mist-1", "mac": "aabbccddeeff", "name": "ap1", "site_id": "site-1", "type": "ap"},
				})
				return
			}
			json.NewEncoder(w).Encode([]map[string]string{})

		case r.URL.Path == "/api/v1/sites/site-1/devices/mist-1/restart" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"status": "restarting"})

		case r.URL.Path == "/api/v1/sites/site-1/devices/mist-1" && r.Method == http.MethodPut:
			var settings map[string]any
			if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(settings)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestMistCloudConnect(t *testing.T) {
	srv := newMistServer(t)
	defer srv.Close()

	m := NewMistCloud(mistEndpoint(srv.URL), mistGateway(), slog.Default())
	result := m.Connect(context.Background(), "ap1")

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if result.Data["mist_device_id"] != "mist-1" {
		t.Errorf("unexpected device id: %v", result.Data["mist_device_id"])
	}
	if result.Data["site_id"] != "site-1" {
		t.Errorf("unexpected site id: %v", result.Data["site_id"])
	}
}

func TestMistCloudConnectRequiresMAC(t *testing.T) {
	srv := newMistServer(t)
	defer srv.Close()

	m := NewMistCloud(mistEndpoint(srv.URL), mistGateway(), slog.Default())
	result := m.Connect(context.Background(), "ap2")

	if result.Success {
		t.Fatal("expected failure for device without MAC")
	}
	if !strings.Contains(result.Message, "MAC address required") {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestMistCloudExecuteCommand(t *testing.T) {
	srv := newMistServer(t)
	defer srv.Close()

	m := NewMistCloud(mistEndpoint(srv.URL), mistGateway(), slog.Default())
	result := m.ExecuteCommand(context.Background(), "ap1", "restart")

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if result.Data["operation"] != "restart" {
		t.Errorf("unexpected operation: %v", result.Data["operation"])
	}
}

func TestMistCloudDeployConfiguration(t *testing.T) {
	srv := newMistServer(t)
	defer srv.Close()

	m := NewMistCloud(mistEndpoint(srv.URL), mistGateway(), slog.Default())

	t.Run("valid JSON settings", func(t *testing.T) {
		result := m.DeployConfiguration(context.Background(), "ap1", `{"name":"ap1-renamed"}`, DeployOptions{})
		if !result.Success {
			t.Fatalf("expected success, got: %s", result.Message)
		}
	})

	t.Run("non-JSON payload rejected locally", func(t *testing.T) {
		result := m.DeployConfiguration(context.Background(), "ap1", "hostname ap1", DeployOptions{})
		if result.Success {
			t.Fatal("expected failure for non-JSON configuration")
		}
		if !strings.Contains(result.Message, "JSON") {
			t.Errorf("unexpected message: %s", result.Message)
		}
	})
}

func TestMistCloudDeviceKnown(t *testing.T) {
	srv := newMistServer(t)
	defer srv.Close()

	m := NewMistCloud(mistEndpoint(srv.URL), mistGateway(), slog.Default())

	if !m.DeviceKnown(context.Background(), "ap1") {
		t.Error("expected ap1 to be known")
	}
	if m.DeviceKnown(context.Background(), "ap2") {
		t.Error("device without MAC cannot be known")
	}
}

func TestNormalizeMAC(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"AA:BB:CC:DD:EE:FF", "aabbccddeeff"},
		{"aa-bb-cc-dd-ee-ff", "aabbccddeeff"},
		{"aabb.ccdd.eeff", "aabbccddeeff"},
		{"aabbccddeeff", "aabbccddeeff"},
	}
	for _, tc := range cases {
		if got := normalizeMAC(tc.in); got != tc.out {
			t.Errorf("normalizeMAC(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
