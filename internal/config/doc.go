// ABOUTME: Package documentation for the configuration layer.
// ABOUTME: Covers the YAML file shape and the operator identity state.

// Package config loads the console's YAML configuration and the
// operator's persisted identity.
//
// Configuration files support ${VAR_NAME} environment variable
// expansion and Go duration strings:
//
//	backend:
//	  base_url: https://backend.example.com
//	  token: ${CONSOLE_TOKEN}
//	push:
//	  url: wss://backend.example.com/api/admin/ws
//	  reconnect_initial: 1s
//	  reconnect_max: 30s
//	observer:
//	  enabled: true
//	  listen_addr: 127.0.0.1:9190
//	logging:
//	  level: info
//	  format: text
//
// The operator identity lives in a separate TOML state file so the same
// config file can be shared between operators.
package config
