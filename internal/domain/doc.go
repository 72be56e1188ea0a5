// ABOUTME: Package domain holds the shared data model for the console.
// ABOUTME: Conversations, messages, activity states, and review records used across packages.

package domain
