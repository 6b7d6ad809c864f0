package endpoints

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryCount = 3
)

// Source supplies configuration values for endpoint construction. The
// production source is the process environment; tests inject maps.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads endpoint configuration from environment variables.
type EnvSource struct{}

func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapSource is a Source backed by a plain map, used in tests.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// kindSpec declares how one endpoint kind is built: which configuration keys
// must be present for the kind to be configured at all, and how to assemble
// the Endpoint from the source. Keeping this as a table keeps vendor
// conditionals out of the registry itself.
type kindSpec struct {
	name         string
	displayName  string
	kind         Kind
	requiredKeys []string
	build        func(get func(string) string) *Endpoint
}

var kindSpecs = []kindSpec{
	{
		name:         "catalyst_center",
		displayName:  "Cisco Catalyst Center",
		kind:         KindCatalystCenter,
		requiredKeys: []string{"CATALYST_CENTER_URL", "CATALYST_CENTER_USERNAME", "CATALYST_CENTER_PASSWORD"},
		build: func(get func(string) string) *Endpoint {
			return &Endpoint{
				BaseURL:    get("CATALYST_CENTER_URL"),
				AuthMethod: AuthToken,
				Credentials: Credentials{
					Username:     get("CATALYST_CENTER_USERNAME"),
					Password:     get("CATALYST_CENTER_PASSWORD"),
					ClientID:     get("CATALYST_CENTER_CLIENT_ID"),
					ClientSecret: get("CATALYST_CENTER_CLIENT_SECRET"),
				},
				Version: "v1",
			}
		},
	},
	{
		name:         "mist_cloud",
		displayName:  "Juniper Mist Cloud",
		kind:         KindMistCloud,
		requiredKeys: []string{"MIST_CLOUD_TOKEN", "MIST_ORG_ID"},
		build: func(get func(string) string) *Endpoint {
			baseURL := get("MIST_CLOUD_URL")
			if baseURL == "" {
				baseURL = "https://api.mist.com"
			}
			return &Endpoint{
				BaseURL:    baseURL,
				AuthMethod: AuthToken,
				Credentials: Credentials{
					Token: get("MIST_CLOUD_TOKEN"),
					OrgID: get("MIST_ORG_ID"),
				},
				Version: "v1",
			}
		},
	},
	{
		name:         "arista_cvp",
		displayName:  "Arista CloudVision Portal",
		kind:         KindAristaCVP,
		requiredKeys: []string{"ARISTA_CVP_URL", "ARISTA_CVP_USERNAME", "ARISTA_CVP_PASSWORD"},
		build: func(get func(string) string) *Endpoint {
			return &Endpoint{
				BaseURL:    get("ARISTA_CVP_URL"),
				AuthMethod: AuthToken,
				Credentials: Credentials{
					Username: get("ARISTA_CVP_USERNAME"),
					Password: get("ARISTA_CVP_PASSWORD"),
				},
				Version: "v6",
			}
		},
	},
	{
		name:         "juniper_space",
		displayName:  "Juniper Space",
		kind:         KindJuniperSpace,
		requiredKeys: []string{"JUNIPER_SPACE_URL", "JUNIPER_SPACE_USERNAME", "JUNIPER_SPACE_PASSWORD"},
		build: func(get func(string) string) *Endpoint {
			return &Endpoint{
				BaseURL:    get("JUNIPER_SPACE_URL"),
				AuthMethod: AuthBasic,
				Credentials: Credentials{
					Username: get("JUNIPER_SPACE_USERNAME"),
					Password: get("JUNIPER_SPACE_PASSWORD"),
				},
			}
		},
	},
	{
		name:         "fortimanager",
		displayName:  "Fortinet FortiManager",
		kind:         KindFortiManager,
		requiredKeys: []string{"FORTIMANAGER_URL", "FORTIMANAGER_USERNAME", "FORTIMANAGER_PASSWORD"},
		build: func(get func(string) string) *Endpoint {
			return &Endpoint{
				BaseURL:    get("FORTIMANAGER_URL"),
				AuthMethod: AuthToken,
				Credentials: Credentials{
					Username: get("FORTIMANAGER_USERNAME"),
					Password: get("FORTIMANAGER_PASSWORD"),
				},
			}
		},
	},
	{
		name:         "panorama",
		displayName:  "Palo Alto Panorama",
		kind:         KindPanorama,
		requiredKeys: []string{"PANORAMA_URL", "PANORAMA_API_KEY"},
		build: func(get func(string) string) *Endpoint {
			return &Endpoint{
				BaseURL:    get("PANORAMA_URL"),
				AuthMethod: AuthToken,
				Credentials: Credentials{
					APIKey: get("PANORAMA_API_KEY"),
				},
			}
		},
	},
}

// Registry holds all configured endpoints, keyed by name. It is read-only
// after Load and therefore safe for concurrent use without locking.
type Registry struct {
	byName map[string]*Endpoint
}

// Load builds the registry from the source. A kind whose required keys are
// absent is simply not configured; a kind that fails validation is skipped
// with a warning. Neither aborts the load.
func Load(source Source, logger *slog.Logger) *Registry {
	validate := validator.New()
	byName := make(map[string]*Endpoint)

	for _, spec := range kindSpecs {
		if missing := missingKeys(source, spec.requiredKeys); len(missing) > 0 {
			continue
		}

		get := func(key string) string {
			v, _ := source.Lookup(key)
			return v
		}

		ep := spec.build(get)
		ep.Name = spec.name
		ep.DisplayName = spec.displayName
		ep.Kind = spec.kind
		ep.Enabled = true
		ep.Timeout = lookupTimeout(source, spec.name)
		ep.RetryCount = defaultRetryCount

		if err := validate.Struct(ep); err != nil {
			logger.Warn("Skipping malformed endpoint configuration",
				"endpoint", spec.name,
				"error", err.Error(),
			)
			continue
		}

		byName[spec.name] = ep
		logger.Info("Endpoint configured",
			"endpoint", spec.name,
			"kind", string(spec.kind),
			"base_url", ep.BaseURL,
		)
	}

	return &Registry{byName: byName}
}

// NewRegistry builds a registry directly from endpoints, used in tests.
func NewRegistry(eps ...*Endpoint) *Registry {
	byName := make(map[string]*Endpoint, len(eps))
	for _, ep := range eps {
		byName[ep.Name] = ep
	}
	return &Registry{byName: byName}
}

// Get returns the endpoint with the given name, or nil if not configured.
func (r *Registry) Get(name string) *Endpoint {
	return r.byName[name]
}

// Has reports whether an enabled endpoint with the given name exists.
func (r *Registry) Has(name string) bool {
	ep := r.byName[name]
	return ep != nil && ep.Enabled
}

// List returns diagnostic summaries for all configured endpoints, sorted by
// name for stable output.
func (r *Registry) List() []Summary {
	summaries := make([]Summary, 0, len(r.byName))
	for _, ep := range r.byName {
		summaries = append(summaries, Summary{
			Name:    ep.Name,
			Kind:    ep.Kind,
			BaseURL: ep.BaseURL,
			Enabled: ep.Enabled,
			Version: ep.Version,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

func missingKeys(source Source, keys []string) []string {
	var missing []string
	for _, key := range keys {
		if v, ok := source.Lookup(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// lookupTimeout reads an optional per-endpoint timeout override, e.g.
// MIST_CLOUD_TIMEOUT_SECONDS=60.
func lookupTimeout(source Source, name string) time.Duration {
	key := fmt.Sprintf("%s_TIMEOUT_SECONDS", toEnvPrefix(name))
	if v, ok := source.Lookup(key); ok && v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultTimeout
}

func toEnvPrefix(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
