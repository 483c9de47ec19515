// Package config provides application configuration management from
// environment variables plus an optional YAML policy file.
//
// # Configuration Structure
//
// Server settings:
//
//	ENTBRIDGE_HOST="0.0.0.0"
//	ENTBRIDGE_PORT="8080"
//	ENTBRIDGE_HEALTH_PORT="9090"
//
// Enterprise bridge settings:
//
//	ENTBRIDGE_ENTERPRISE_ENABLED="true"
//	ENTBRIDGE_JWT_SECRET="..."                 # shared HS256 secret
//	ENTBRIDGE_TOKEN_MAX_AGE="1h"
//	ENTBRIDGE_ALLOWED_ORIGINS="10.0.0.1,192.168.1.0/24"
//	ENTBRIDGE_ROLE_MAPPING="super_admin=owner,manager=admin,employee=normal"
//	ENTBRIDGE_RATE_LIMIT="10"
//	ENTBRIDGE_RATE_WINDOW="60s"
//
// Store settings:
//
//	ENTBRIDGE_REDIS_URL="redis://localhost:6379"
//	ENTBRIDGE_POSTGRES_URL="postgres://localhost/entbridge"
//
// Role mappings and origin allow-lists may alternatively be supplied in a
// YAML policy file named by ENTBRIDGE_POLICY_FILE:
//
//	role_mapping:
//	  super_admin: owner
//	  manager: admin
//	allowed_origins:
//	  - 192.168.1.0/24
//
// File values override the corresponding environment variables.
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
