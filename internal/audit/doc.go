// Package audit implements async dispatching of identity lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, slog, NATS JetStream, no-op).
//   - [Dispatcher]: ordered queue in front of the sink; drops or waits when full,
//     and bounds each delivery with Config.SinkTimeout.
//   - [Event]: structured record with timestamp, type, user, session, IP, outcome.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does. Sinks never see credentials or tokens.
package audit
