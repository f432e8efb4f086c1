package services

import "strings"

// Intent тип запроса к ассистенту.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentBalance   Intent = "balance"
	IntentAnalytics Intent = "analytics"
)

var (
	greetings       = []string{"hi", "hello", "hey"}
	balanceKeywords = []string{"balance", "remaining", "income"}
)

// Classify определяет тип запроса. Проверки идут по порядку: приветствие,
// баланс, аналитика. Запрос вида "income above 500" попадает в баланс,
// хотя по смыслу это аналитика.
func Classify(query string) Intent {
	lower := strings.ToLower(query)
	trimmed := strings.TrimSpace(lower)
	for _, g := range greetings {
		if trimmed == g {
			return IntentGreeting
		}
	}
	for _, kw := range balanceKeywords {
		if strings.Contains(lower, kw) {
			return IntentBalance
		}
	}
	return IntentAnalytics
}
