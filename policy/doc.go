// Package policy loads declarative control plane policies from YAML.
//
// A document lists operations with their requirements, rate limits and
// circuit breakers, plus a membership bootstrap and the rate limit
// whitelist:
//
//	version: 1
//	operations:
//	  - name: mint-badge
//	    scope: badges
//	    requires_approval: false
//	    rate_limit:
//	      algorithm: fixed_window
//	      max_requests: 3
//	      window: 60s
//	    breaker:
//	      threshold: 3
//	      window: 1m
//	      cooldown: 5m
//	      trigger_severity: high
//	members:
//	  alice: [admin, configurator]
//	whitelist: [batch-minter]
//
// Documents are validated as a whole. goGuard's Engine.ApplyPolicy applies
// a valid document atomically.
package policy
