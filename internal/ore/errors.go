package ore

import (
	"errors"
	"fmt"
)

var (
	// ErrPluginNotFound means the plugin id does not exist on the catalog.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrVersionNotFound means the plugin exists but the named version does not.
	ErrVersionNotFound = errors.New("version not found")
	// ErrAuthenticationRequired means the endpoint needs an API key and none
	// is configured, or the catalog rejected the session.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrUnreachable covers transport-level failures: timeouts, refused
	// connections, DNS. Eligible for bounded retry.
	ErrUnreachable = errors.New("catalog unreachable")
	// ErrCatalogUnavailable covers server-side (5xx) failures. Retried up to
	// the configured bound, then surfaced.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// NotFoundError wraps ErrPluginNotFound/ErrVersionNotFound with the
// identifiers that produced it.
type NotFoundError struct {
	PluginID string
	Version  string
	kind     error
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%v: %s@%s", e.kind, e.PluginID, e.Version)
	}
	return fmt.Sprintf("%v: %s", e.kind, e.PluginID)
}

func (e *NotFoundError) Unwrap() error { return e.kind }

func newPluginNotFound(pluginID string) error {
	return &NotFoundError{PluginID: pluginID, kind: ErrPluginNotFound}
}

func newVersionNotFound(pluginID, version string) error {
	return &NotFoundError{PluginID: pluginID, Version: version, kind: ErrVersionNotFound}
}
