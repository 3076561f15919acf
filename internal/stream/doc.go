// Package stream implements the streaming-client core.
//
// Components:
//   - Registry: the desired-state set of subscribed symbols; survives
//     disconnects and is replayed after every successful (re)connection
//   - Transport: one WebSocket connection to the price feed
//   - Manager: connection lifecycle state machine, reconnect backoff,
//     subscription replay, and callback fan-out
//
// The Manager is an explicitly constructed object with an owner-controlled
// lifetime; the hosting process builds one and wires consumers to it through
// OnPrice, OnStateChange, and OnError.
package stream
