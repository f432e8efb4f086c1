package models

import "time"

// Income запись о доходе.
type Income struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount"`
	Source    string    `json:"source,omitempty"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type IncomeRequest struct {
	Date   string  `json:"date" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Source string  `json:"source,omitempty" validate:"omitempty,max=200"`
}
