package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// CardDTO is the holder's view of their card.
type CardDTO struct {
	ID         uuid.UUID        `json:"id"`
	Status     enums.CardStatus `json:"status"`
	NextStep   string           `json:"next_step"`
	Balance    decimal.Decimal  `json:"balance"`
	IsActive   bool             `json:"is_active"`
	Usable     bool             `json:"usable"`
	CardNumber *string          `json:"card_number,omitempty"`
	VirtualID  *string          `json:"virtual_id,omitempty"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

func newCardDTO(card *models.SokohubCard) *CardDTO {
	return &CardDTO{
		ID:         card.ID,
		Status:     card.Status,
		NextStep:   card.Status.NextStep(),
		Balance:    card.Balance,
		IsActive:   card.IsActive,
		Usable:     card.Usable(),
		CardNumber: card.CardNumber,
		VirtualID:  card.VirtualID,
		ApprovedAt: card.ApprovedAt,
		CreatedAt:  card.CreatedAt,
	}
}

// TopUpRequest is the body of POST /wallet/top-up.
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransactionList is one page of ledger rows.
type TransactionList struct {
	Items  []models.CardTransaction `json:"items"`
	Cursor string                   `json:"cursor"`
}
