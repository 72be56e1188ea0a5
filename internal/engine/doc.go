// ABOUTME: Package engine is the live multi-conversation synchronization core.
// ABOUTME: Reduces push events into roster/timeline/activity state and runs typing, send, and review workflows.

package engine
