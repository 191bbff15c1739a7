package propagation

import "context"

// redactionPlugin is the always-appended-last plugin from spec §3/§4.3: its
// inject-time updater deletes the configured field names unconditionally,
// regardless of their in-memory value or any other plugin's inject
// updater. It never contributes to extraction or to finished-span routing.
type redactionPlugin struct {
	names []string
}

func newRedactionPlugin(names []string) *redactionPlugin {
	return &redactionPlugin{names: names}
}

func (r *redactionPlugin) FieldNames() []string { return r.names }

func (r *redactionPlugin) ExtractFactory(*ExtractFlags) Updater {
	return passthroughUpdater
}

func (r *redactionPlugin) InjectFactory(context.Context) Updater {
	redacted := make(map[string]bool, len(r.names))
	for _, n := range r.names {
		redacted[n] = true
	}
	return UpdaterFunc(func(name, value string, ok bool) (string, bool) {
		if redacted[name] {
			return "", false
		}
		return value, ok
	})
}

func (r *redactionPlugin) FinishedSpanHandler() FinishedSpanHandler { return nil }

var _ Plugin = (*redactionPlugin)(nil)
