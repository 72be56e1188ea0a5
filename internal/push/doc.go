// ABOUTME: Package push carries the WebSocket event channel between console and gateway.
// ABOUTME: Inbound frames decode into the event union; outbound emissions are the fallback command path.

package push
