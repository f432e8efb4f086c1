// Package pipeline разбирает агрегационный конвейер, который генерирует LLM,
// привязывает его к владельцу данных и переводит в параметризованный SQL.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage одна стадия конвейера, например {"$match": {...}}.
type Stage struct {
	Op   string
	Body json.RawMessage
}

// Result результат разбора ответа LLM: Parsed или Failure.
type Result interface {
	isResult()
}

// Parsed успешно разобранный, но ещё не проверенный на владельца конвейер.
type Parsed struct {
	Stages []Stage
}

// Failure ответ LLM, который не удалось разобрать.
type Failure struct {
	Raw    string
	Reason string
}

func (Parsed) isResult()  {}
func (Failure) isResult() {}

var supportedStages = map[string]bool{
	"$match":   true,
	"$group":   true,
	"$sort":    true,
	"$limit":   true,
	"$skip":    true,
	"$project": true,
	"$count":   true,
}

// Sanitize убирает markdown-ограждения кода и пробелы по краям.
func Sanitize(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// Parse разбирает ответ LLM. Ожидается JSON-массив объектов с одним ключом-стадией.
func Parse(raw string) Result {
	cleaned := Sanitize(raw)
	if cleaned == "" {
		return Failure{Raw: raw, Reason: "empty response"}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return Failure{Raw: raw, Reason: fmt.Sprintf("not a JSON array: %v", err)}
	}
	// null разбирается в nil без ошибки
	if items == nil {
		return Failure{Raw: raw, Reason: "not a JSON array"}
	}

	stages := make([]Stage, 0, len(items))
	for i, item := range items {
		members, err := decodeObject(item)
		if err != nil {
			return Failure{Raw: raw, Reason: fmt.Sprintf("stage %d: %v", i, err)}
		}
		if len(members) != 1 {
			return Failure{Raw: raw, Reason: fmt.Sprintf("stage %d: expected exactly one operator, got %d", i, len(members))}
		}
		op := members[0].Key
		if !supportedStages[op] {
			return Failure{Raw: raw, Reason: fmt.Sprintf("stage %d: unsupported stage %q", i, op)}
		}
		stages = append(stages, Stage{Op: op, Body: members[0].Value})
	}
	return Parsed{Stages: stages}
}
