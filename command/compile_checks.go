package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-billgate/core"
)

var (
	_ gocmd.Commander[PaymentMessage]     = (*PaymentCommand)(nil)
	_ gocmd.Commander[AdviceMessage]      = (*AdviceCommand)(nil)
	_ gocmd.Commander[ReversalMessage]    = (*ReversalCommand)(nil)
	_ gocmd.Commander[CheckStatusMessage] = (*CheckStatusCommand)(nil)

	_ TransactionService = (*core.Gateway)(nil)
)
