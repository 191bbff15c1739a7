package propagation

import apperrors "tracefields/pkg/errors"

// newConfigError builds the ConfigError kind from spec §7: malformed plugin
// or field registration is rejected at build time rather than surfacing as
// a panic or a silently-ignored no-op.
func newConfigError(operation, message string) error {
	return apperrors.ConfigError(operation, message)
}
