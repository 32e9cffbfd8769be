// Package config loads the configuration of a service built on callguard.
//
// Files may be YAML, JSON or TOML and are read with github.com/spf13/viper.
// Every key can be overridden from the environment with the CALLGUARD_
// prefix, dots replaced by underscores:
//
//	CALLGUARD_LOGGING_LEVEL=debug
//	CALLGUARD_CACHE_REDIS_ADDR=redis:6379
//
// String values that hold secrets or addresses accept ${VAR} references.
// They are expanded strictly: an unset variable fails the load. $$ is a
// literal dollar.
//
//	service: licensing-service
//	auth:
//	  signing_key: ${LICENSING_JWT_KEY}
//	commands:
//	  - name: licenseByOrg
//	    core_size: 30
//	    max_queue_size: 10
//	    timeout_ms: 12000
//
// The sections convert to the types of the packages they configure:
// ExecutorOptions for resilience, ObserveConfig for observe, NewDecoder for
// auth and NewCache for cache.
package config
