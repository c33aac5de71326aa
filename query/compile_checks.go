package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-billgate/core"
)

var (
	_ gocmd.Querier[TokenMessage, core.Token]                       = (*TokenQuery)(nil)
	_ gocmd.Querier[InquiryMessage, core.InquiryResult]             = (*InquiryQuery)(nil)
	_ gocmd.Querier[BalanceMessage, core.BalanceResult]             = (*BalanceQuery)(nil)
	_ gocmd.Querier[PendingTransactionsMessage, []core.LedgerEntry] = (*PendingTransactionsQuery)(nil)
	_ gocmd.Querier[LedgerEntryMessage, core.LedgerEntry]           = (*LedgerEntryQuery)(nil)

	_ TokenReader  = (*core.Gateway)(nil)
	_ BillReader   = (*core.Gateway)(nil)
	_ LedgerReader = (*core.Gateway)(nil)
)
