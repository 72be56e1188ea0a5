// ABOUTME: Package timeline keeps per-conversation message logs with id dedupe.
// ABOUTME: Optimistic operator sends are tracked as pending records until reconciled or rolled back.

package timeline
