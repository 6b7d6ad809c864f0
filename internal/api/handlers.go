package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/devconn/devconn/internal/auth"
	"github.com/devconn/devconn/internal/connector"
	"github.com/devconn/devconn/internal/endpoints"
)

// DeviceService is the connection-manager surface the handlers call.
// Defined here so tests can substitute a fake.
type DeviceService interface {
	ConnectToDevice(ctx context.Context, deviceID string) connector.Result
	ExecuteDeviceCommand(ctx context.Context, deviceID, command string) connector.Result
	DeployDeviceConfiguration(ctx context.Context, deviceID, config string, opts connector.DeployOptions) connector.Result
	TestDeviceConnectivity(ctx context.Context, deviceID string) map[string]connector.Result
	DeployBatch(ctx context.Context, deviceIDs []string, config string, opts connector.DeployOptions) map[string]connector.Result
}

// AuthHandler serves login requests.
type AuthHandler struct {
	authService *auth.Service
	validate    *validator.Validate
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[auth.LoginRequest](w, r)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "Username and password are required", err.Error())
		return
	}

	resp, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		sendError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

// CommandRequest is the payload for command execution.
type CommandRequest struct {
	Command string `json:"command" validate:"required"`
}

// DeployRequest is the payload for single-device configuration deployment.
type DeployRequest struct {
	Config             string `json:"config" validate:"required"`
	BackupBeforeChange bool   `json:"backup_before_change"`
	TemplateName       string `json:"template_name"`
}

// BatchDeployRequest is the payload for batch configuration deployment.
type BatchDeployRequest struct {
	DeviceIDs          []string `json:"device_ids" validate:"required,min=1,dive,required"`
	Config             string   `json:"config" validate:"required"`
	BackupBeforeChange bool     `json:"backup_before_change"`
	TemplateName       string   `json:"template_name"`
}

// DeviceHandler serves device connection operations.
type DeviceHandler struct {
	service  DeviceService
	validate *validator.Validate
}

// NewDeviceHandler creates a device handler on the given service.
func NewDeviceHandler(service DeviceService) *DeviceHandler {
	return &DeviceHandler{
		service:  service,
		validate: validator.New(),
	}
}

// Connect handles POST /api/v1/devices/{id}/connect
func (h *DeviceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	result := h.service.ConnectToDevice(r.Context(), deviceID)
	sendJSON(w, http.StatusOK, result)
}

// ExecuteCommand handles POST /api/v1/devices/{id}/command
func (h *DeviceHandler) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	req, ok := decodeJSON[CommandRequest](w, r)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "command is required", err.Error())
		return
	}

	result := h.service.ExecuteDeviceCommand(r.Context(), deviceID, req.Command)
	sendJSON(w, http.StatusOK, result)
}

// DeployConfiguration handles POST /api/v1/devices/{id}/configuration
func (h *DeviceHandler) DeployConfiguration(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	req, ok := decodeJSON[DeployRequest](w, r)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "config is required", err.Error())
		return
	}

	result := h.service.DeployDeviceConfiguration(r.Context(), deviceID, req.Config, connector.DeployOptions{
		BackupBeforeChange: req.BackupBeforeChange,
		TemplateName:       req.TemplateName,
	})
	sendJSON(w, http.StatusOK, result)
}

// TestConnectivity handles GET /api/v1/devices/{id}/connectivity
func (h *DeviceHandler) TestConnectivity(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	results := h.service.TestDeviceConnectivity(r.Context(), deviceID)
	sendJSON(w, http.StatusOK, results)
}

// DeployBatch handles POST /api/v1/devices/configuration/batch
func (h *DeviceHandler) DeployBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[BatchDeployRequest](w, r)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_FAILED", "device_ids and config are required", err.Error())
		return
	}

	results := h.service.DeployBatch(r.Context(), req.DeviceIDs, req.Config, connector.DeployOptions{
		BackupBeforeChange: req.BackupBeforeChange,
		TemplateName:       req.TemplateName,
	})
	sendJSON(w, http.StatusOK, results)
}

// EndpointHandler serves endpoint registry diagnostics.
type EndpointHandler struct {
	registry *endpoints.Registry
}

// NewEndpointHandler creates an endpoint handler.
func NewEndpointHandler(registry *endpoints.Registry) *EndpointHandler {
	return &EndpointHandler{registry: registry}
}

// List handles GET /api/v1/endpoints
func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{"data": h.registry.List()})
}

// HealthHandler serves liveness checks.
type HealthHandler struct{}

// NewHealthHandler creates a health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
