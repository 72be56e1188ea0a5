// ABOUTME: Package dedupe prevents duplicate processing of redelivered push events.

package dedupe
