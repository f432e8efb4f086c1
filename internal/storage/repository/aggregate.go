package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/dhanrekha/internal/pipeline"
)

// Aggregate выполняет конвейер ассистента над расходами владельца конвейера.
// Принимает только pipeline.Scoped, поэтому выполнить конвейер без фильтра владельца нельзя.
func (s *Storage) Aggregate(ctx context.Context, scoped pipeline.Scoped) ([]map[string]any, error) {
	const op = "storage.Aggregate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	q, err := pipeline.Compile(scoped, s.AggregateLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []map[string]any{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
