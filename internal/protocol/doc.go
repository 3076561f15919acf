// Package protocol implements the JSON wire codec for the price feed.
//
// Client -> server frames:
//   - {"type": "subscribe", "ticker": "<symbol>"}
//   - {"type": "unsubscribe", "ticker": "<symbol>"}
//   - {"type": "ping"}
//
// Server -> client frames:
//   - {"type": "connected", "client_id": "..."}
//   - {"type": "subscribed"|"unsubscribed", "ticker": "..."}
//   - {"type": "price_update", "ticker", "price", "change", "change_percent", "timestamp"}
//   - {"type": "pong"}
//   - {"type": "error", "message": "..."}
//
// Unknown inbound kinds decode successfully as KindUnknown so server-added
// message kinds never break the client.
package protocol
