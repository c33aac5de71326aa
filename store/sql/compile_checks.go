package sqlstore

import "github.com/goliatone/go-billgate/core"

var (
	_ core.TokenStore        = (*TokenStore)(nil)
	_ core.TokenStore        = (*CachedTokenStore)(nil)
	_ core.TransactionLedger = (*LedgerStore)(nil)
	_ core.LedgerLister      = (*LedgerStore)(nil)
)
