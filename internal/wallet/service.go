package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
	"github.com/sokohub/sokohub-backend/pkg/security"
)

const (
	cardNumberPrefix   = "5050"
	cardNumberDigits   = 12
	virtualIDPrefix    = "SH-"
	virtualIDLength    = 6
	maxIdentifierTries = 10
)

var maxTopUp = decimal.NewFromInt(1_000_000)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages the Sokohub Card lifecycle and its balance.
type Service interface {
	Request(ctx context.Context, userID uuid.UUID) (*CardDTO, error)
	Pay(ctx context.Context, userID uuid.UUID) (*CardDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*CardDTO, error)
	TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*CardDTO, error)
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, ref string) (*models.CardTransaction, error)
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, ref string) (*models.CardTransaction, error)
	Transactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionList, error)
}

// IdentifierFunc returns a candidate card number and virtual id.
type IdentifierFunc func() (cardNumber, virtualID string, err error)

// ServiceParams bundles wallet dependencies.
type ServiceParams struct {
	Repo        *Repository
	TxRunner    txRunner
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Identifiers IdentifierFunc
	Now         func() time.Time
}

type service struct {
	repo        *Repository
	tx          txRunner
	outbox      outboxPublisher
	logg        *logger.Logger
	identifiers IdentifierFunc
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("wallet repository required")
	}
	if params.TxRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	identifiers := params.Identifiers
	if identifiers == nil {
		identifiers = RandomIdentifiers
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TxRunner,
		outbox:      params.Outbox,
		logg:        params.Logger,
		identifiers: identifiers,
		now:         now,
	}, nil
}

// RandomIdentifiers draws a 5050-prefixed 16 digit card number and an SH-XXXXXX virtual id.
func RandomIdentifiers() (string, string, error) {
	digits, err := security.RandomDigits(cardNumberDigits)
	if err != nil {
		return "", "", err
	}
	suffix, err := security.RandomString(virtualIDLength, security.UpperAlphanumericCharset)
	if err != nil {
		return "", "", err
	}
	return cardNumberPrefix + digits, virtualIDPrefix + suffix, nil
}

// Request creates a pending card, or returns the existing one with its next step.
func (s *service) Request(ctx context.Context, userID uuid.UUID) (*CardDTO, error) {
	card, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return newCardDTO(card), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card")
	}

	card = &models.SokohubCard{UserID: userID, Status: enums.CardStatusPending, Balance: decimal.Zero}
	if err := s.repo.Create(ctx, card); err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create card")
		}
		card, err = s.repo.FindByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload card")
		}
	}
	return newCardDTO(card), nil
}

// Pay simulates the issuance fee: the card moves through paid to approved and
// receives its identifiers. Paying an approved card changes nothing.
func (s *service) Pay(ctx context.Context, userID uuid.UUID) (*CardDTO, error) {
	var out *models.SokohubCard
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		card, err := s.cardFor(ctx, repo, userID)
		if err != nil {
			return err
		}
		if card.Status == enums.CardStatusApproved {
			out = card
			return nil
		}

		if card.Status == enums.CardStatusPending {
			ok, err := repo.Advance(ctx, card.ID, enums.CardStatusPending, enums.CardStatusPaid)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark card paid")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "card changed concurrently")
			}
		}

		cardNumber, virtualID, err := s.uniqueIdentifiers(ctx, repo)
		if err != nil {
			return err
		}
		now := s.now()
		ok, err := repo.Activate(ctx, card.ID, cardNumber, virtualID, now)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "card identifier collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate card")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "card changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCardActivated,
			AggregateType: enums.AggregateCard,
			AggregateID:   card.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data:          outbox.CardActivatedEvent{CardID: card.ID, UserID: userID, VirtualID: virtualID},
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit card activated")
		}

		out, err = s.cardFor(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "sokohub card active")
	}
	return newCardDTO(out), nil
}

func (s *service) uniqueIdentifiers(ctx context.Context, repo *Repository) (string, string, error) {
	for attempt := 0; attempt < maxIdentifierTries; attempt++ {
		cardNumber, virtualID, err := s.identifiers()
		if err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate card identifiers")
		}
		taken, err := repo.IdentifiersTaken(ctx, cardNumber, virtualID)
		if err != nil {
			return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check card identifiers")
		}
		if !taken {
			return cardNumber, virtualID, nil
		}
	}
	return "", "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate card identifiers")
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CardDTO, error) {
	card, err := s.cardFor(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	return newCardDTO(card), nil
}

func (s *service) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*CardDTO, error) {
	if err := validateTopUp(amount); err != nil {
		return nil, err
	}
	var out *models.SokohubCard
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		card, err := s.usableCard(ctx, repo, userID)
		if err != nil {
			return err
		}
		if _, err := s.move(ctx, repo, card, amount, enums.CardTransactionTopUp, ""); err != nil {
			return err
		}
		out, err = s.cardFor(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newCardDTO(out), nil
}

// Debit withdraws amount inside tx. The balance check happens in the UPDATE.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, ref string) (*models.CardTransaction, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	repo := s.repo.WithTx(tx)
	card, err := s.usableCard(ctx, repo, userID)
	if err != nil {
		return nil, err
	}
	ok, err := repo.Deduct(ctx, card.ID, amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit card")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
			WithDetails(map[string]any{"required": amount, "balance": card.Balance})
	}
	return s.record(ctx, repo, card.ID, amount, enums.CardTransactionDebit, ref)
}

// Credit returns funds inside tx. Refunds are not subject to the top-up cap.
func (s *service) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, ref string) (*models.CardTransaction, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	repo := s.repo.WithTx(tx)
	card, err := s.cardFor(ctx, repo, userID)
	if err != nil {
		return nil, err
	}
	return s.move(ctx, repo, card, amount, enums.CardTransactionRefund, ref)
}

func (s *service) Transactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionList, error) {
	card, err := s.cardFor(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListTransactions(ctx, card.ID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list card transactions")
	}
	out := &TransactionList{Items: rows}
	if out.Items == nil {
		out.Items = []models.CardTransaction{}
	}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) move(ctx context.Context, repo *Repository, card *models.SokohubCard, amount decimal.Decimal, kind enums.CardTransactionType, ref string) (*models.CardTransaction, error) {
	ok, err := repo.Add(ctx, card.ID, amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit card")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "card not found")
	}
	return s.record(ctx, repo, card.ID, amount, kind, ref)
}

func (s *service) record(ctx context.Context, repo *Repository, cardID uuid.UUID, amount decimal.Decimal, kind enums.CardTransactionType, ref string) (*models.CardTransaction, error) {
	balance, err := repo.Balance(ctx, cardID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload balance")
	}
	entry := &models.CardTransaction{
		CardID:       cardID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: balance,
	}
	if ref != "" {
		entry.Reference = &ref
	}
	if err := repo.InsertTransaction(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record card transaction")
	}
	return entry, nil
}

func (s *service) cardFor(ctx context.Context, repo *Repository, userID uuid.UUID) (*models.SokohubCard, error) {
	card, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "card not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load card")
	}
	return card, nil
}

func (s *service) usableCard(ctx context.Context, repo *Repository, userID uuid.UUID) (*models.SokohubCard, error) {
	card, err := s.cardFor(ctx, repo, userID)
	if err != nil {
		return nil, err
	}
	if !card.Usable() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "card is not active").
			WithDetails(map[string]any{"status": card.Status, "next_step": card.Status.NextStep()})
	}
	return card, nil
}

func validateTopUp(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		return pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	case amount.GreaterThan(maxTopUp):
		return pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the top-up limit").
			WithDetails(map[string]any{"max": maxTopUp})
	}
	return nil
}
