// ABOUTME: Package activity tracks the agent's per-conversation processing state.
// ABOUTME: At most one entry per conversation; absence means the agent is idle there.

package activity
