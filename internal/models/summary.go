package models

// CategoryTotal сумма расходов по одной категории.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// CategoryBreakdown сумма и количество расходов по категории за месяц.
type CategoryBreakdown struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// Balance итог по всем доходам и расходам пользователя за всё время.
type Balance struct {
	TotalIncome      float64 `json:"totalIncome"`
	TotalExpense     float64 `json:"totalExpense"`
	RemainingBalance float64 `json:"remainingBalance"`
}

// MonthlySummary сводка за месяц. Категории отсортированы по убыванию суммы.
type MonthlySummary struct {
	Month        int                 `json:"month"`
	Year         int                 `json:"year"`
	TotalIncome  float64             `json:"totalIncome"`
	TotalExpense float64             `json:"totalExpense"`
	Balance      float64             `json:"balance"`
	Categories   []CategoryBreakdown `json:"categories"`
}

// BalanceSheetType значение поля type у BalanceSheet.
const BalanceSheetType = "balance_sheet"

// BalanceSheet результат детерминированной ветки ассистента.
// Значения не округляются.
type BalanceSheet struct {
	Type         string  `json:"type"`
	Month        string  `json:"month"`
	TotalIncome  float64 `json:"totalIncome"`
	TotalExpense float64 `json:"totalExpense"`
	Balance      float64 `json:"balance"`
}

// AIQueryRequest вопрос пользователя к ассистенту.
type AIQueryRequest struct {
	Query string `json:"query" validate:"required"`
}

// AIQueryResponse ответ ассистента.
type AIQueryResponse struct {
	Reply string `json:"reply"`
}
