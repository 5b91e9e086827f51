// Package signaling relays the browser's WebRTC session offer to the hosted
// inference provider and returns the provider's answer.
//
// Only the handshake is proxied. Media flows directly between the browser
// and the provider once the answer is applied.
package signaling
