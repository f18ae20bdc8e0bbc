package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/pagination"
)

// Repository persists cards and their ledger.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.SokohubCard, error) {
	var card models.SokohubCard
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *Repository) Create(ctx context.Context, card *models.SokohubCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// Advance moves the card from one status to the next. It reports false when
// the card was no longer in from.
func (r *Repository) Advance(ctx context.Context, cardID uuid.UUID, from, to enums.CardStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SokohubCard{}).
		Where("id = ? AND status = ?", cardID, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

// Activate approves a paid card and stamps its identifiers.
func (r *Repository) Activate(ctx context.Context, cardID uuid.UUID, cardNumber, virtualID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SokohubCard{}).
		Where("id = ? AND status = ?", cardID, enums.CardStatusPaid).
		Updates(map[string]any{
			"status":      enums.CardStatusApproved,
			"is_active":   true,
			"card_number": cardNumber,
			"virtual_id":  virtualID,
			"approved_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// IdentifiersTaken reports whether either value is already assigned to a card.
func (r *Repository) IdentifiersTaken(ctx context.Context, cardNumber, virtualID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SokohubCard{}).
		Where("card_number = ? OR virtual_id = ?", cardNumber, virtualID).
		Count(&count).Error
	return count > 0, err
}

// Deduct subtracts amount only when the balance covers it.
func (r *Repository) Deduct(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SokohubCard{}).
		Where("id = ? AND balance >= ?", cardID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Add(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SokohubCard{}).
		Where("id = ?", cardID).
		Update("balance", gorm.Expr("balance + ?", amount))
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Balance(ctx context.Context, cardID uuid.UUID) (decimal.Decimal, error) {
	var card models.SokohubCard
	if err := r.db.WithContext(ctx).Select("id", "balance").First(&card, "id = ?", cardID).Error; err != nil {
		return decimal.Zero, err
	}
	return card.Balance, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, entry *models.CardTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListTransactions returns the newest ledger rows first, keyed on (created_at, id).
func (r *Repository) ListTransactions(ctx context.Context, cardID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.CardTransaction, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	query := r.db.WithContext(ctx).Model(&models.CardTransaction{}).Where("card_id = ?", cardID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.CardTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(normalized + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		last := rows[normalized-1]
		return rows[:normalized], &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}
