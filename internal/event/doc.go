// ABOUTME: Package event defines the closed set of push events the console consumes.
// ABOUTME: Each wire event has a strict payload struct; dispatch is a type switch, not string matching.

package event
