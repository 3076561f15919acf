// Package modes coordinates acquisition-strategy negotiation with the
// backend: listing available modes, applying a switch, and watching feed
// status so the process can move between continuous push (websocket) and
// periodic pull (REST polling) without losing subscription state.
package modes
