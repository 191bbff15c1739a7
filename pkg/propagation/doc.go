// Package propagation implements the extra-field propagation core of the
// tracer: a composable layer that carries named, request-scoped string
// fields alongside a primary go.opentelemetry.io/otel/propagation carrier,
// and that lets an ordered chain of plugins observe and mutate those fields
// on extraction and injection.
//
// The primary wire format (B3, W3C tracecontext, or any other
// propagation.TextMapPropagator), the tracer that creates spans, and the
// span reporter are all external collaborators referenced only through
// their OpenTelemetry interfaces; this package never constructs them.
package propagation
