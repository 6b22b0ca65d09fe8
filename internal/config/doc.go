// Package config provides configuration management for scenarioctl.
//
// Configuration is loaded from multiple sources and merged in a specific
// order, with later sources overriding earlier ones.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//  2. User Configuration (~/.config/scenarioctl/config.yaml)
//  3. Project Configuration (./.scenarioctl/config.yaml)
//  4. Explicit file passed with --config
//  5. Environment variables, falling back to a ./.env file
//
// # Configuration Structure
//
//	baseURL: http://localhost:3000
//	compose:
//	  tool: ["docker", "compose"]
//	  file: docker-compose.yml
//	  linuxOverlay: docker-compose.linux.yml
//	  stopTimeout: 30s
//	readiness:
//	  marker: "Server ready:"
//	  timeout: 2m
//	probe:
//	  timeout: 30s
//	  retries: 2
//	artifactsDir: artifacts
//	enabled: false
//	failFast: false
//	reportPath: report.json
//	output: console
//	logLevel: info
//
// # Environment Variables
//
//   - SCENARIOCTL_BASE_URL overrides baseURL
//   - SCENARIOCTL_COMPOSE_TOOL overrides compose.tool, split on whitespace
//   - SCENARIOCTL_READY_TIMEOUT overrides readiness.timeout
//   - SCENARIOCTL_LOG_LEVEL overrides logLevel
//   - DOCKER_COMPOSE_DETECTED sets enabled when present (1, true, yes, on)
//
// Booleans left out of a file do not override lower layers.
package config
