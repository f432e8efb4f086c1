package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errNotObject = errors.New("expected JSON object")
	errNotScalar = errors.New("expected scalar value")
)

type member struct {
	Key   string
	Value json.RawMessage
}

// decodeObject разбирает JSON-объект, сохраняя порядок ключей.
func decodeObject(raw json.RawMessage) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	var out []member
	seen := make(map[string]bool)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, errNotObject
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true

		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, member{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isObject(raw json.RawMessage) bool { return firstByte(raw) == '{' }

func isArray(raw json.RawMessage) bool { return firstByte(raw) == '[' }

// decodeScalar возвращает json.Number, string, bool или nil.
func decodeScalar(raw json.RawMessage) (any, error) {
	if isObject(raw) || isArray(raw) {
		return nil, errNotScalar
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// fieldRef возвращает имя поля для ссылки вида "$amount".
func fieldRef(raw json.RawMessage) (string, bool) {
	v, err := decodeScalar(raw)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || len(s) < 2 || s[0] != '$' {
		return "", false
	}
	return s[1:], true
}
