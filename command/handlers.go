package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-billgate/core"
)

// TransactionService is the money-moving surface of the gateway.
type TransactionService interface {
	Payment(ctx context.Context, req core.SimplePaymentRequest) (core.PaymentResult, error)
	Advice(ctx context.Context, req core.SimpleAdviceRequest) (core.AdviceResult, error)
	Reversal(ctx context.Context, transactionID string) (core.ReversalResult, error)
	CheckStatus(ctx context.Context, transactionID string) (core.StatusResult, error)
}

// The gateway returns a classified result alongside most errors. Handlers
// store it before returning the error so callers always see the outcome.

type PaymentCommand struct {
	service TransactionService
}

func NewPaymentCommand(service TransactionService) *PaymentCommand {
	return &PaymentCommand{service: service}
}

func (c *PaymentCommand) Execute(ctx context.Context, msg PaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Payment(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type AdviceCommand struct {
	service TransactionService
}

func NewAdviceCommand(service TransactionService) *AdviceCommand {
	return &AdviceCommand{service: service}
}

func (c *AdviceCommand) Execute(ctx context.Context, msg AdviceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: advice service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Advice(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type ReversalCommand struct {
	service TransactionService
}

func NewReversalCommand(service TransactionService) *ReversalCommand {
	return &ReversalCommand{service: service}
}

func (c *ReversalCommand) Execute(ctx context.Context, msg ReversalMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reversal service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Reversal(ctx, msg.TransactionID)
	storeResult(ctx, out)
	return err
}

type CheckStatusCommand struct {
	service TransactionService
}

func NewCheckStatusCommand(service TransactionService) *CheckStatusCommand {
	return &CheckStatusCommand{service: service}
}

func (c *CheckStatusCommand) Execute(ctx context.Context, msg CheckStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: status service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CheckStatus(ctx, msg.TransactionID)
	storeResult(ctx, out)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
