// Package inventory defines the contract to the external system of record
// for device identity, management addresses and credentials, plus the
// adapters this service ships with (Postgres for production, an in-memory
// store for tests).
package inventory

import (
	"context"
	"os"
)

// Device is the read-only projection of an inventory device used for
// connection routing.
type Device struct {
	ID           string
	Name         string
	ManagementIP string
	Platform     string
	Manufacturer string
	Role         string
	MACAddress   string
	SerialNumber string
}

// Secrets is the credential bundle for direct device access.
type Secrets struct {
	Username       string
	Password       string
	EnablePassword string
	PrivateKey     string
	Passphrase     string
	Community      string
	Port           int
}

// Gateway is the inventory collaborator contract. Lookups for unknown
// devices return (nil, nil); errors are reserved for transport/store
// failures. Implementations must be safe for concurrent use.
type Gateway interface {
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
	GetSecrets(ctx context.Context, deviceID string) (*Secrets, error)
}

// DefaultSecrets returns platform-level default credentials, used when the
// inventory has no secrets recorded for a device. Values come from the
// environment so lab defaults never end up in source.
func DefaultSecrets(platform string) *Secrets {
	switch platform {
	case "cisco-ios":
		return &Secrets{
			Username:       envOr("CISCO_DEFAULT_USERNAME", "admin"),
			Password:       envOr("CISCO_DEFAULT_PASSWORD", "admin"),
			EnablePassword: os.Getenv("CISCO_ENABLE_PASSWORD"),
		}
	case "cisco-nxos":
		return &Secrets{
			Username: envOr("CISCO_NXOS_USERNAME", "admin"),
			Password: envOr("CISCO_NXOS_PASSWORD", "admin"),
		}
	case "juniper-junos":
		return &Secrets{
			Username: envOr("JUNIPER_USERNAME", "admin"),
			Password: envOr("JUNIPER_PASSWORD", "admin"),
		}
	case "arista-eos":
		return &Secrets{
			Username: envOr("ARISTA_USERNAME", "admin"),
			Password: envOr("ARISTA_PASSWORD", "admin"),
		}
	default:
		return &Secrets{
			Username: envOr("DEVICE_DEFAULT_USERNAME", "admin"),
			Password: envOr("DEVICE_DEFAULT_PASSWORD", "admin"),
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
