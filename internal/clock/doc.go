// ABOUTME: Package clock abstracts timers and the current time.
// ABOUTME: Lets the typing counter, isNew window, and status expiry run on a fake clock in tests.

package clock
