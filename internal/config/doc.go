// Package config handles configuration loading for the brewdesk binaries.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Every key has a default, so a missing file is not an error.
//
// # Configuration File
//
// Resolve picks the file (in order):
//
//  1. The -config flag
//  2. Path from BREWDESK_CONFIG environment variable
//  3. ./brewdesk.yaml, ./brewdesk.yml or ./brewdesk.toml
//
// Files ending in .toml are parsed as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	backend:
//	  jwt_secret: "${BREWDESK_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Configuration Sections
//
// Backend API used by the clients:
//
//	api:
//	  base_url: "http://localhost:8000"
//	  timeout: "10s"
//	  per_page: 100
//	  paths:
//	    products: "/drinkware"   # optional per-kind override
//
// Admin session and chat:
//
//	session:
//	  force_local_logout: false
//	chat:
//	  session_id: ""             # random when empty
//	  send_history: false
//
// Development backend:
//
//	backend:
//	  addr: "127.0.0.1:8000"
//	  database_path: "brewdesk.db"
//	  admin_password_hash: "$2a$10$..."
//	  jwt_secret: "${BREWDESK_JWT_SECRET}"
//	  session_ttl: "24h"
//	  login_rate: 1
//	  login_burst: 5
//
// Logging and metrics:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load validates the settings every binary shares. The backend additionally
// calls ValidateBackend, which requires an admin password and a signing
// secret of at least 32 bytes.
package config
