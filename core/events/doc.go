// Package events defines the central-system events emitted on the event bus.
//
// Available event types:
//   - ConnectionEvent: station connected, superseded or disconnected
//   - TransactionEvent: transaction started or stopped
//   - CallEvent: outbound call resolved, failed or timed out
package events
