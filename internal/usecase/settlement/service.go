// Package settlement moves settled money for confirmed transactions and
// unwinds holds for canceled ones. Every entry point is safe to replay:
// settlement attempts are deduplicated by action identifier and the account
// store applies each leg at most once.
package settlement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pecorino-jp/ledger/internal/domain"
)

// Service executes money transfers recorded as potential actions.
type Service struct {
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	actions      domain.ActionRepository
	log          *zap.Logger
	now          func() time.Time
}

// NewService creates a new settlement service
func NewService(
	accounts domain.AccountRepository,
	transactions domain.TransactionRepository,
	actions domain.ActionRepository,
	log *zap.Logger,
) *Service {
	return &Service{
		accounts:     accounts,
		transactions: transactions,
		actions:      actions,
		log:          log,
		now:          time.Now,
	}
}

// TransferMoney settles one money transfer. The action identifier is the
// idempotency key: a replayed task finds the completed action and returns
// without touching balances again.
func (s *Service) TransferMoney(ctx context.Context, attrs domain.MoneyTransferAttributes) (*domain.Action, error) {
	return s.settle(ctx, attrs, false)
}

// settle runs one settlement attempt. A reversal settles without holds: the
// original settlement consumed the pending entries, so its legs must apply
// on their own, and an outcome where none did is a failure, not a replay.
func (s *Service) settle(ctx context.Context, attrs domain.MoneyTransferAttributes, reversal bool) (*domain.Action, error) {
	if attrs.Identifier == "" {
		return nil, domain.NewArgumentNullError("identifier")
	}

	action, err := s.actions.StartByIdentifier(ctx, domain.NewAction(attrs, s.now().UTC()))
	if err != nil {
		return nil, err
	}
	if action.Status == domain.ActionStatusCompleted {
		return action, nil
	}

	movement, err := s.movementFor(attrs)
	if err != nil {
		s.giveUp(ctx, action, err)
		return nil, err
	}
	movement.WithoutHolds = reversal

	outcome, err := s.accounts.SettleTransaction(ctx, movement)
	if err != nil {
		s.giveUp(ctx, action, err)
		return nil, err
	}
	s.observeMissing(attrs, outcome)

	if reversal && !outcome.FromApplied && !outcome.ToApplied {
		err := fmt.Errorf("return of %s settled no accounts: %w", attrs.Identifier, domain.ErrNotFound)
		s.giveUp(ctx, action, err)
		return nil, err
	}

	if err := s.actions.Complete(ctx, attrs.TypeOf, action.ID, domain.ActionResult{Amount: attrs.Amount}); err != nil {
		return nil, err
	}

	return action, nil
}

// CancelMoneyTransfer voids the holds of a canceled or expired transaction
// and cancels any action still active for it.
func (s *Service) CancelMoneyTransfer(ctx context.Context, ref domain.TransactionRef) error {
	transaction, err := s.transactions.FindByID(ctx, ref.TypeOf, ref.ID)
	if err != nil {
		return err
	}

	movement, err := s.movementForVoid(transaction)
	if err != nil {
		return err
	}

	outcome, err := s.accounts.VoidTransaction(ctx, movement)
	if err != nil {
		return err
	}
	if len(outcome.MissingAccounts) > 0 {
		s.log.Warn("void skipped missing accounts",
			zap.String("transactionId", transaction.ID.String()),
			zap.Strings("accountNumbers", outcome.MissingAccounts))
	}

	actions, err := s.actions.FindByPurpose(ctx, transaction.ID)
	if err != nil {
		return err
	}
	for _, action := range actions {
		if action.Status != domain.ActionStatusActive {
			continue
		}
		if err := s.actions.Cancel(ctx, action.TypeOf, action.ID); err != nil {
			return err
		}
	}

	return nil
}

// ReturnMoneyTransfer refunds a confirmed transaction by settling the
// reverse transfer, then marks the transaction Returned. The reversing
// action carries its own identifier so that a return replays independently
// of the original settlement.
func (s *Service) ReturnMoneyTransfer(ctx context.Context, purpose domain.Purpose) error {
	transaction, err := s.transactions.FindByID(ctx, purpose.TypeOf, purpose.ID)
	if err != nil {
		return err
	}
	if transaction.Status != domain.TransactionStatusConfirmed &&
		transaction.Status != domain.TransactionStatusReturned {
		return domain.NewArgumentError("transaction",
			fmt.Sprintf("transaction is %s and cannot be returned", transaction.Status))
	}

	attrs, err := domain.NewMoneyTransferAttributes(transaction)
	if err != nil {
		return err
	}
	attrs.FromLocation, attrs.ToLocation = attrs.ToLocation, attrs.FromLocation
	attrs.Identifier = attrs.Identifier + "-Returned"
	attrs.Agent, attrs.Recipient = attrs.Recipient, attrs.Agent
	attrs.Purpose.Status = domain.TransactionStatusReturned

	if _, err := s.settle(ctx, attrs, true); err != nil {
		return err
	}

	_, err = s.transactions.Return(ctx, purpose.TypeOf, purpose.ID)
	return err
}

// movementFor maps the transfer locations onto account-store legs. A leg
// backed by an anonymous location is simply absent.
func (s *Service) movementFor(attrs domain.MoneyTransferAttributes) (domain.MoneyMovement, error) {
	movement := domain.MoneyMovement{
		Amount:        attrs.Amount,
		TransactionID: attrs.Purpose.ID,
	}
	if attrs.FromLocation.IsAccount() {
		movement.FromAccountNumber = attrs.FromLocation.AccountNumber
	}
	if attrs.ToLocation.IsAccount() {
		movement.ToAccountNumber = attrs.ToLocation.AccountNumber
	}
	if movement.FromAccountNumber == "" && movement.ToAccountNumber == "" {
		return domain.MoneyMovement{}, fmt.Errorf("money transfer with no account-backed location: %w", domain.ErrNotImplemented)
	}
	return movement, nil
}

// movementForVoid derives which holds a canceled transaction placed. The
// debit side held the from account, the credit side the to account.
func (s *Service) movementForVoid(t *domain.Transaction) (domain.MoneyMovement, error) {
	movement := domain.MoneyMovement{
		Amount:        t.Object.Amount,
		TransactionID: t.ID,
	}
	if !t.TypeOf.Debits() && !t.TypeOf.Credits() {
		return domain.MoneyMovement{}, domain.NewArgumentError("typeOf",
			fmt.Sprintf("unexpected transaction type %q", t.TypeOf))
	}
	if t.TypeOf.Debits() {
		if t.Object.FromLocation == nil || !t.Object.FromLocation.IsAccount() {
			return domain.MoneyMovement{}, domain.NewArgumentError("transaction", "debit side is not account-backed")
		}
		movement.FromAccountNumber = t.Object.FromLocation.AccountNumber
	}
	if t.TypeOf.Credits() {
		if t.Object.ToLocation == nil || !t.Object.ToLocation.IsAccount() {
			return domain.MoneyMovement{}, domain.NewArgumentError("transaction", "credit side is not account-backed")
		}
		movement.ToAccountNumber = t.Object.ToLocation.AccountNumber
	}
	return movement, nil
}

// giveUp records the failure on the action. The original error is what the
// caller needs; a failure to record it is only logged.
func (s *Service) giveUp(ctx context.Context, action *domain.Action, cause error) {
	if err := s.actions.GiveUp(ctx, action.TypeOf, action.ID, cause.Error()); err != nil {
		s.log.Error("failed to record action failure",
			zap.String("actionId", action.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) observeMissing(attrs domain.MoneyTransferAttributes, outcome domain.SettleOutcome) {
	if len(outcome.MissingAccounts) == 0 {
		return
	}
	s.log.Warn("settlement skipped missing accounts",
		zap.String("identifier", attrs.Identifier),
		zap.Strings("accountNumbers", outcome.MissingAccounts))
}
