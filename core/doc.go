// Package core contains the gateway contracts, configuration, error taxonomy,
// and the transaction orchestrator. Signing, transport, and storage adapters
// depend on this package; core must not depend on them.
package core
