// Package config handles configuration loading for carebridge.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CAREBRIDGE_CONFIG environment variable
//  2. ~/.config/carebridge/carebridge.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	agents:
//	  directory:
//	    frontdesk_agent:
//	      webhook_url: "${FRONTDESK_WEBHOOK_URL}"
//
// Syntax: ${VAR_NAME}
//
// # Environment Overrides
//
// A small set of CAREBRIDGE_* variables override file values after parsing,
// so harness scripts can retarget the gateway without editing YAML:
//
//	CAREBRIDGE_MODE, CAREBRIDGE_HTTP_ADDR, CAREBRIDGE_DB_PATH,
//	CAREBRIDGE_FHIR_BASE_URL, CAREBRIDGE_ENTRY_AGENT, CAREBRIDGE_MAX_STEPS,
//	CAREBRIDGE_CALL_TIMEOUT, CAREBRIDGE_EVAL_AGENT, CAREBRIDGE_EVAL_TIMEOUT
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	multihop:
//	  call_timeout: "30s"
package config
