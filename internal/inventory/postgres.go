package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway reads devices and secrets from the inventory database via
// a pgx pool. The schema is owned by the inventory system; this adapter only
// reads the columns routing needs.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

// NewPostgresGateway creates a gateway on an existing pool.
func NewPostgresGateway(pool *pgxpool.Pool) *PostgresGateway {
	return &PostgresGateway{pool: pool}
}

const getDeviceQuery = `
SELECT d.device_id, d.name, COALESCE(host(d.management_ip), ''),
       COALESCE(d.platform, ''), COALESCE(d.manufacturer, ''),
       COALESCE(d.device_role, ''), COALESCE(d.mac_address, ''),
       COALESCE(d.serial_number, '')
FROM devices d
WHERE d.device_id = $1
`

// GetDevice looks up a device by ID. An unknown device returns (nil, nil).
func (g *PostgresGateway) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	row := g.pool.QueryRow(ctx, getDeviceQuery, deviceID)

	dev := &Device{}
	err := row.Scan(
		&dev.ID, &dev.Name, &dev.ManagementIP,
		&dev.Platform, &dev.Manufacturer,
		&dev.Role, &dev.MACAddress, &dev.SerialNumber,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device %s: %w", deviceID, err)
	}
	return dev, nil
}

const getSecretsQuery = `
SELECT COALESCE(s.username, ''), COALESCE(s.password, ''),
       COALESCE(s.enable_password, ''), COALESCE(s.private_key, ''),
       COALESCE(s.passphrase, ''), COALESCE(s.snmp_community, ''),
       COALESCE(s.port, 0)
FROM device_secrets s
WHERE s.device_id = $1
`

// GetSecrets returns the device's recorded credentials, or (nil, nil) when
// none exist. Callers fall back to platform defaults in that case.
func (g *PostgresGateway) GetSecrets(ctx context.Context, deviceID string) (*Secrets, error) {
	row := g.pool.QueryRow(ctx, getSecretsQuery, deviceID)

	sec := &Secrets{}
	err := row.Scan(
		&sec.Username, &sec.Password, &sec.EnablePassword,
		&sec.PrivateKey, &sec.Passphrase, &sec.Community, &sec.Port,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secrets for device %s: %w", deviceID, err)
	}
	return sec, nil
}
