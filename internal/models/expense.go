package models

import "time"

// Categories допустимые категории расходов.
var Categories = []string{
	"Food",
	"Transport",
	"Groceries",
	"Rent",
	"Stationery",
	"Personal Care",
	"Electric Bill",
	"Water Bill",
	"Cylinder",
	"Internet Bill",
	"EMI",
	"Recharge",
	"Other",
}

// IsValidCategory проверяет, что категория входит в список Categories.
// Сравнение регистрозависимое.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Expense запись о расходе. Month и Year всегда выводятся из Date (UTC).
type Expense struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExpenseRequest тело запроса создания расхода. Дата приходит строкой и парсится вручную.
type ExpenseRequest struct {
	Date        string  `json:"date" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required"`
	Description string  `json:"description,omitempty" validate:"omitempty,max=500"`
}

// DateRange необязательные границы периода. Nil означает отсутствие границы.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// BulkResult ответ на массовое добавление расходов.
type BulkResult struct {
	Count int `json:"count"`
}
