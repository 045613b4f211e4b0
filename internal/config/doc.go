// Package config handles configuration loading for ticketbot.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TICKETBOT_CONFIG environment variable
//  2. ~/.config/ticketbot/ticketbot.yaml (respecting XDG_CONFIG_HOME)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	whatsapp:
//	  app_secret: "${WHATSAPP_APP_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string and are
// caught by validation when the field is required.
//
// # Duration Parsing
//
// Duration fields accept Go duration strings ("10m", "15s"). Raw string
// fields are parsed into time.Duration values during Load.
//
// # Validation
//
// Load fails fast on missing credentials (app secret, verify token, access
// token, phone number id), an unusable session store, or an enabled
// dashboard without credentials. These are the only fatal errors in the
// system; runtime failures are absorbed at the router boundary.
package config
