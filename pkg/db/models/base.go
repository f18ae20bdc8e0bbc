package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert so rows carry app-generated ids
// on every dialect.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Receipt{},
		&SokohubCard{},
		&CardTransaction{},
		&EmailOTP{},
		&Notification{},
		&Promotion{},
		&OutboxEvent{},
	}
}
