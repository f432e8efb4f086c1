package services

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const queryPromptTemplate = `
You are a MongoDB Expert. Convert the user's question into a MongoDB Aggregation Pipeline.

DATABASE SCHEMA:
Collection: 'expenses'
- amount (Number)
- category (String)
- month (Number, 1-12)  <-- PREFER THIS for month filters
- year (Number)         <-- PREFER THIS for year filters
- date (Date Object)    <-- DO NOT USE for filtering

CONTEXT:
- User ID: "%s"
- Current Year: %d

RULES:
1. Return ONLY a valid JSON array.
2. STRICTLY forbid 'ObjectId' syntax. Use strings.
3. FILTERING:
   - For "December", usage: { "month": 12 } (Do NOT use date ranges).
   - For "above 500", usage: { "amount": { "$gt": 500 } }.
   - Unless the user says "last year", assume { "year": %d }.
4. Do NOT include a $match for 'userId' (I will add it manually).

User Question: "%s"
`

const summaryPromptTemplate = `
Role: Personal Finance Assistant for %s.
User Question: "%s"

RAW DATA (Found by Database):
%s

INSTRUCTIONS:
1. If the user asks for a list (e.g., "Show expenses above 500"), you MUST list **EVERY SINGLE ITEM** found in the data.
2. Do NOT summarize or skip items. If the database found 3 items, list 3 items.
3. Format clearly: "• [Date] - [Category]: ₹[Amount]"
4. If the data shows a "balance_sheet", simply state the Income, Expense, and Balance.

Your Reply:
`

// BuildQueryPrompt собирает запрос к модели, которая пишет агрегационный конвейер.
func BuildQueryPrompt(question, userID string, currentYear int) string {
	return fmt.Sprintf(queryPromptTemplate, userID, currentYear, currentYear, question)
}

// BuildSummaryPrompt собирает запрос к модели, которая пересказывает найденные данные.
func BuildSummaryPrompt(question, firstName string, data any) (string, error) {
	const op = "services.assistant.BuildSummaryPrompt"
	raw, err := indentJSON(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf(summaryPromptTemplate, firstName, question, raw), nil
}

func indentJSON(data any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
