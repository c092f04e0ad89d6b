package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages runtime toggles for pipeline behaviour that ops may
// need to switch off without a deploy (a flaky mail gateway, a Redis
// incident, a runaway sweep).
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// FeatureExpirySweep runs the background session-expiry job. Lazy
	// expiry on access still applies when this is off.
	FeatureExpirySweep = "vetting.expiry_sweep"

	// FeatureEmailDelivery actually sends mail; off logs instead.
	FeatureEmailDelivery = "vetting.email_delivery"

	// FeatureTokenCache consults Redis for token resolution.
	FeatureTokenCache = "vetting.token_cache"

	// FeatureAdminListing exposes the admin application listing.
	FeatureAdminListing = "admin.listing"
)

// LoadFeatureFlags loads feature flags from environment variables.
// Env override format: FEATURE_VETTING_EXPIRY_SWEEP=false.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{FeatureExpirySweep, "Background session expiry sweep", true},
		{FeatureEmailDelivery, "Outgoing email delivery", true},
		{FeatureTokenCache, "Redis token resolution cache", true},
		{FeatureAdminListing, "Admin application listing endpoint", true},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment applies FEATURE_* overrides.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := "FEATURE_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(name))
		if val := os.Getenv(envKey); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
			}
		}
	}
}

// IsEnabled reports whether the named feature is on. Unknown features are
// off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set flips a feature at runtime (admin tooling, tests).
func (ff *FeatureFlags) Set(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if f, ok := ff.features[name]; ok {
		f.Enabled = enabled
	}
}

// All returns a snapshot of every flag, for diagnostics output.
func (ff *FeatureFlags) All() map[string]bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make(map[string]bool, len(ff.features))
	for name, f := range ff.features {
		out[name] = f.Enabled
	}
	return out
}
