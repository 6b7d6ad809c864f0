// Package endpoints holds the registry of centralized management API
// endpoints (campus controllers, vendor clouds). The registry is built once
// at startup from the environment and is immutable afterwards.
package endpoints

import "time"

// Kind identifies a supported centralized management API.
type Kind string

const (
	KindCatalystCenter Kind = "catalyst_center"
	KindMistCloud      Kind = "mist_cloud"
	KindAristaCVP      Kind = "arista_cvp"
	KindJuniperSpace   Kind = "juniper_space"
	KindFortiManager   Kind = "fortimanager"
	KindPanorama       Kind = "panorama"
)

// AuthMethod identifies how an endpoint authenticates API calls.
type AuthMethod string

const (
	AuthToken       AuthMethod = "token"
	AuthBasic       AuthMethod = "basic"
	AuthCertificate AuthMethod = "certificate"
	AuthOAuth       AuthMethod = "oauth"
)

// Credentials is the credential bundle for one endpoint. Which fields are
// populated depends on the endpoint's auth method.
type Credentials struct {
	Username     string
	Password     string
	Token        string
	APIKey       string
	ClientID     string
	ClientSecret string
	OrgID        string
}

// Endpoint is one configured centralized management API. Instances are
// created by Load and never mutated afterwards.
type Endpoint struct {
	Name        string     `validate:"required"`
	DisplayName string     `validate:"required"`
	Kind        Kind       `validate:"required"`
	BaseURL     string     `validate:"required,url"`
	AuthMethod  AuthMethod `validate:"required,oneof=token basic certificate oauth"`
	Credentials Credentials
	Version     string
	Enabled     bool
	Timeout     time.Duration
	RetryCount  int
}

// Summary is the diagnostic projection of an Endpoint returned by List.
// Credentials are deliberately excluded.
type Summary struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"type"`
	BaseURL string `json:"base_url"`
	Enabled bool   `json:"enabled"`
	Version string `json:"version,omitempty"`
}
