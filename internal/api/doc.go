// ABOUTME: Package api is the REST-shaped command client for the gateway backend.
// ABOUTME: Everything here is request/response; live state arrives over the push channel instead.

package api
