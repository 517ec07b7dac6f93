// Package domain defines the core data types shared across yieldscope.
package domain

import "time"

// Pool represents one liquidity pool tracked by the system.
// Corresponds to the pools table in PostgreSQL.
type Pool struct {
	PoolID     string // stable identifier assigned by the upstream aggregator
	Project    string // protocol the pool belongs to (e.g. "aave-v3")
	Chain      string // chain the pool is deployed on
	Symbol     string // pool token symbol (e.g. "USDC-WETH")
	Name       string // display name, may equal Symbol
	Category   string // protocol category label used for filtering
	Stablecoin bool   // true if the pool holds only stable assets

	FirstSeenAt time.Time // when ingestion first observed this pool
	LastSeenAt  time.Time // when ingestion last observed this pool
}
