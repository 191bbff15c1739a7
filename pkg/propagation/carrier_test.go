package propagation

// mapCarrier implements go.opentelemetry.io/otel/propagation.TextMapCarrier
// over a plain map, for use across this package's tests.
type mapCarrier map[string]string

func (c mapCarrier) Get(key string) string { return c[key] }

func (c mapCarrier) Set(key, value string) { c[key] = value }

func (c mapCarrier) Keys() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	return out
}
