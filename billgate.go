package billgate

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"

	"github.com/goliatone/go-billgate/adapters/gocommand"
	billcommand "github.com/goliatone/go-billgate/command"
	"github.com/goliatone/go-billgate/core"
	billquery "github.com/goliatone/go-billgate/query"
)

type Config = core.Config

type Option = core.Option

type Gateway = core.Gateway

type (
	Token                = core.Token
	TokenRequest         = core.TokenRequest
	Bill                 = core.Bill
	SimpleInquiryRequest = core.SimpleInquiryRequest
	SimplePaymentRequest = core.SimplePaymentRequest
	SimpleAdviceRequest  = core.SimpleAdviceRequest
	BalanceRequest       = core.BalanceRequest
	InquiryResult        = core.InquiryResult
	PaymentResult        = core.PaymentResult
	AdviceResult         = core.AdviceResult
	ReversalResult       = core.ReversalResult
	StatusResult         = core.StatusResult
	BalanceResult        = core.BalanceResult
	TransactionOutcome   = core.TransactionOutcome
	OperationState       = core.OperationState
	LedgerEntry          = core.LedgerEntry
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTokenProvider     = core.WithTokenProvider
	WithTransactionSigner = core.WithTransactionSigner
	WithTransport         = core.WithTransport
	WithLedger            = core.WithLedger
	WithSessionRegistry   = core.WithSessionRegistry
	WithStatusTable       = core.WithStatusTable
	WithClock             = core.WithClock
	WithIDGenerator       = core.WithIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewGateway(cfg Config, opts ...Option) (*Gateway, error) {
	return core.NewGateway(cfg, opts...)
}

// GatewayService is everything the command and query handlers call into.
type GatewayService interface {
	billcommand.TransactionService
	billquery.TokenReader
	billquery.BillReader
	billquery.LedgerReader
}

type Commands struct {
	Payment     *billcommand.PaymentCommand
	Advice      *billcommand.AdviceCommand
	Reversal    *billcommand.ReversalCommand
	CheckStatus *billcommand.CheckStatusCommand
}

type Queries struct {
	Token               *billquery.TokenQuery
	Inquiry             *billquery.InquiryQuery
	Balance             *billquery.BalanceQuery
	PendingTransactions *billquery.PendingTransactionsQuery
	LedgerEntry         *billquery.LedgerEntryQuery
}

type Facade struct {
	service  GatewayService
	commands Commands
	queries  Queries
}

func NewFacade(service GatewayService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("billgate: gateway service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Payment:     billcommand.NewPaymentCommand(service),
			Advice:      billcommand.NewAdviceCommand(service),
			Reversal:    billcommand.NewReversalCommand(service),
			CheckStatus: billcommand.NewCheckStatusCommand(service),
		},
		queries: Queries{
			Token:               billquery.NewTokenQuery(service),
			Inquiry:             billquery.NewInquiryQuery(service),
			Balance:             billquery.NewBalanceQuery(service),
			PendingTransactions: billquery.NewPendingTransactionsQuery(service),
			LedgerEntry:         billquery.NewLedgerEntryQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() GatewayService {
	if f == nil {
		return nil
	}
	return f.service
}

// Subscribe puts every handler on the go-command dispatcher and records the
// commands in adapter's registry. The returned func drops all subscriptions.
// On error nothing stays subscribed.
func (f *Facade) Subscribe(adapter *gocommand.RegistryAdapter) (func(), error) {
	if f == nil {
		return nil, fmt.Errorf("billgate: facade is not configured")
	}
	var subscriptions []commanddispatcher.Subscription
	unsubscribe := func() {
		for i := len(subscriptions) - 1; i >= 0; i-- {
			subscriptions[i].Unsubscribe()
		}
		subscriptions = nil
	}
	keep := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		if sub != nil {
			subscriptions = append(subscriptions, sub)
		}
		return nil
	}

	steps := []func() error{
		func() error {
			return keep(gocommand.RegisterAndSubscribe[billcommand.PaymentMessage](adapter, f.commands.Payment))
		},
		func() error {
			return keep(gocommand.RegisterAndSubscribe[billcommand.AdviceMessage](adapter, f.commands.Advice))
		},
		func() error {
			return keep(gocommand.RegisterAndSubscribe[billcommand.ReversalMessage](adapter, f.commands.Reversal))
		},
		func() error {
			return keep(gocommand.RegisterAndSubscribe[billcommand.CheckStatusMessage](adapter, f.commands.CheckStatus))
		},
		func() error {
			return keep(gocommand.SubscribeQuery[billquery.TokenMessage, core.Token](f.queries.Token))
		},
		func() error {
			return keep(gocommand.SubscribeQuery[billquery.InquiryMessage, core.InquiryResult](f.queries.Inquiry))
		},
		func() error {
			return keep(gocommand.SubscribeQuery[billquery.BalanceMessage, core.BalanceResult](f.queries.Balance))
		},
		func() error {
			return keep(gocommand.SubscribeQuery[billquery.PendingTransactionsMessage, []core.LedgerEntry](f.queries.PendingTransactions))
		},
		func() error {
			return keep(gocommand.SubscribeQuery[billquery.LedgerEntryMessage, core.LedgerEntry](f.queries.LedgerEntry))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			unsubscribe()
			return nil, err
		}
	}
	return unsubscribe, nil
}
