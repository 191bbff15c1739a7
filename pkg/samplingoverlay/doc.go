// Package samplingoverlay implements a concrete propagation.Plugin family
// that parses and serializes a multi-system secondary sampling header,
// applies TTL and rate-based admission per system, and routes finished spans
// to per-system handlers.
//
// It owns a single wire key ("sampling") and has no dependency on any
// particular primary trace format beyond reading the ambient OpenTelemetry
// span context's sampled flag to tag the outgoing value with
// "sampled=zipkin[,<systems>]" when the primary decision is itself sampled
// (spec §4.7 "Primary coexistence"); it is composed into a
// propagation.Factory alongside whatever direct and prefixed fields the
// host application declares.
package samplingoverlay
