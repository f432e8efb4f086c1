package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/dhanrekha/internal/lib/month"
)

var (
	// ErrUnscoped конвейер без владельца.
	ErrUnscoped = errors.New("pipeline is not scoped to a user")
	// ErrInvalidPipeline конвейер нельзя перевести в SQL.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// DefaultMaxRows ограничение числа строк результата, если maxRows не задан.
const DefaultMaxRows = 500

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Query параметризованный SQL-запрос. Каждая строка результата это один JSON-документ.
type Query struct {
	SQL  string
	Args []any
}

type kind int

const (
	kindNumber kind = iota
	kindText
	kindTime
	kindJSON
)

type column struct {
	name string
	kind kind
}

const baseQuery = `SELECT id::text AS "_id", user_id::text AS "userId", date, amount, category, description, month, year FROM expenses WHERE user_id = $1::uuid`

func sourceColumns() []column {
	return []column{
		{"_id", kindText},
		{"userId", kindText},
		{"date", kindTime},
		{"amount", kindNumber},
		{"category", kindText},
		{"description", kindText},
		{"month", kindNumber},
		{"year", kindNumber},
	}
}

type builder struct {
	args  []any
	cols  []column
	alias int
}

// Compile переводит конвейер в SQL над таблицей expenses.
// Фильтр владельца всегда находится во внутреннем запросе и занимает параметр $1.
func Compile(s Scoped, maxRows int) (Query, error) {
	const op = "pipeline.Compile"
	if s.owner == "" {
		return Query{}, fmt.Errorf("%s: %w", op, ErrUnscoped)
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	b := &builder{
		args: []any{s.owner},
		cols: sourceColumns(),
	}
	q := baseQuery
	for i, st := range s.stages {
		next, err := b.stage(q, st)
		if err != nil {
			return Query{}, fmt.Errorf("%s: stage %d (%s): %w", op, i, st.Op, err)
		}
		q = next
	}

	return Query{
		SQL:  fmt.Sprintf("SELECT row_to_json(t) FROM (%s) AS t LIMIT %d", q, maxRows),
		Args: b.args,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPipeline, fmt.Sprintf(format, args...))
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (b *builder) lookup(name string) (column, error) {
	if !identRe.MatchString(name) {
		return column{}, invalid("bad field name %q", name)
	}
	for _, c := range b.cols {
		if c.name == name {
			return c, nil
		}
	}
	return column{}, invalid("unknown field %q", name)
}

func (b *builder) from(prev string) string {
	b.alias++
	return fmt.Sprintf("(%s) AS s%d", prev, b.alias)
}

func selectList(cols []column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quote(c.name)
	}
	return strings.Join(names, ", ")
}

func (b *builder) stage(prev string, st Stage) (string, error) {
	switch st.Op {
	case "$match":
		return b.match(prev, st.Body)
	case "$group":
		return b.group(prev, st.Body)
	case "$sort":
		return b.sort(prev, st.Body)
	case "$limit":
		return b.limit(prev, st.Body, "LIMIT", false)
	case "$skip":
		return b.limit(prev, st.Body, "OFFSET", true)
	case "$project":
		return b.project(prev, st.Body)
	case "$count":
		return b.count(prev, st.Body)
	default:
		return "", invalid("unsupported stage %q", st.Op)
	}
}

// bind добавляет параметр и возвращает плейсхолдер с приведением к типу колонки.
func (b *builder) bind(v string, k kind) string {
	b.args = append(b.args, v)
	p := fmt.Sprintf("$%d::text", len(b.args))
	switch k {
	case kindNumber:
		return p + "::double precision"
	case kindTime:
		return p + "::timestamptz"
	default:
		return p
	}
}

// literal приводит скалярное JSON-значение к строке параметра для колонки kind.
func literal(v any, k kind) (string, error) {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = val
	default:
		return "", invalid("unsupported value %v", v)
	}

	switch k {
	case kindNumber:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", invalid("%q is not a number", s)
		}
	case kindTime:
		t, err := month.ParseDate(s)
		if err != nil {
			return "", invalid("%q is not a date", s)
		}
		s = t.Format(time.RFC3339Nano)
	case kindJSON:
		return "", invalid("cannot compare composite value")
	}
	return s, nil
}

func (b *builder) match(prev string, body json.RawMessage) (string, error) {
	members, err := decodeObject(body)
	if err != nil {
		return "", invalid("$match: %v", err)
	}
	if len(members) == 0 {
		return prev, nil
	}
	cond, err := b.conjunction(members)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectList(b.cols), b.from(prev), cond), nil
}

func (b *builder) conjunction(members []member) (string, error) {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		var (
			part string
			err  error
		)
		switch m.Key {
		case "$and":
			part, err = b.logical(m.Value, " AND ")
		case "$or":
			part, err = b.logical(m.Value, " OR ")
		default:
			if strings.HasPrefix(m.Key, "$") {
				return "", invalid("unsupported operator %q", m.Key)
			}
			part, err = b.fieldCondition(m.Key, m.Value)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *builder) logical(raw json.RawMessage, sep string) (string, error) {
	var items []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return "", invalid("logical operator expects a non-empty array")
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		members, err := decodeObject(item)
		if err != nil {
			return "", invalid("logical operand: %v", err)
		}
		if len(members) == 0 {
			parts = append(parts, "TRUE")
			continue
		}
		part, err := b.conjunction(members)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *builder) fieldCondition(name string, raw json.RawMessage) (string, error) {
	col, err := b.lookup(name)
	if err != nil {
		return "", err
	}
	q := quote(col.name)

	if !isObject(raw) {
		v, err := decodeScalar(raw)
		if err != nil {
			return "", invalid("field %q: %v", name, err)
		}
		return b.compare(q, col.kind, "=", v)
	}

	ops, err := decodeObject(raw)
	if err != nil {
		return "", invalid("field %q: %v", name, err)
	}
	if len(ops) == 0 {
		return "", invalid("field %q: empty condition", name)
	}

	var options string
	for _, o := range ops {
		if o.Key == "$options" {
			v, err := decodeScalar(o.Value)
			s, ok := v.(string)
			if err != nil || !ok {
				return "", invalid("$options must be a string")
			}
			options = s
		}
	}

	parts := make([]string, 0, len(ops))
	for _, o := range ops {
		var part string
		switch o.Key {
		case "$options":
			continue
		case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
			v, err := decodeScalar(o.Value)
			if err != nil {
				return "", invalid("%s: %v", o.Key, err)
			}
			part, err = b.compare(q, col.kind, comparison[o.Key], v)
			if err != nil {
				return "", err
			}
		case "$in", "$nin":
			part, err = b.in(q, col.kind, o.Key == "$nin", o.Value)
			if err != nil {
				return "", err
			}
		case "$regex":
			v, err := decodeScalar(o.Value)
			s, ok := v.(string)
			if err != nil || !ok {
				return "", invalid("$regex must be a string")
			}
			operator := "~"
			if strings.Contains(options, "i") {
				operator = "~*"
			}
			part = fmt.Sprintf("%s::text %s %s", q, operator, b.bind(s, kindText))
		case "$exists":
			v, err := decodeScalar(o.Value)
			exists, ok := v.(bool)
			if err != nil || !ok {
				return "", invalid("$exists must be a boolean")
			}
			if exists {
				part = q + " IS NOT NULL"
			} else {
				part = q + " IS NULL"
			}
		default:
			return "", invalid("unsupported operator %q", o.Key)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return "", invalid("$options without $regex")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

var comparison = map[string]string{
	"$eq":  "=",
	"$ne":  "<>",
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

func (b *builder) compare(q string, k kind, operator string, v any) (string, error) {
	if v == nil {
		switch operator {
		case "=":
			return q + " IS NULL", nil
		case "<>":
			return q + " IS NOT NULL", nil
		default:
			return "", invalid("null is only comparable for equality")
		}
	}
	s, err := literal(v, k)
	if err != nil {
		return "", err
	}
	if operator == "<>" {
		return fmt.Sprintf("%s IS DISTINCT FROM %s", q, b.bind(s, k)), nil
	}
	return fmt.Sprintf("%s %s %s", q, operator, b.bind(s, k)), nil
}

func (b *builder) in(q string, k kind, negate bool, raw json.RawMessage) (string, error) {
	var items []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &items) != nil {
		return "", invalid("$in expects an array")
	}
	if len(items) == 0 {
		if negate {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	placeholders := make([]string, 0, len(items))
	for _, item := range items {
		v, err := decodeScalar(item)
		if err != nil || v == nil {
			return "", invalid("$in expects scalar values")
		}
		s, err := literal(v, k)
		if err != nil {
			return "", err
		}
		placeholders = append(placeholders, b.bind(s, k))
	}
	operator := "IN"
	if negate {
		operator = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", q, operator, strings.Join(placeholders, ", ")), nil
}

func (b *builder) group(prev string, body json.RawMessage) (string, error) {
	members, err := decodeObject(body)
	if err != nil {
		return "", invalid("$group: %v", err)
	}

	var (
		idRaw json.RawMessage
		hasID bool
	)
	for _, m := range members {
		if m.Key == "_id" {
			idRaw, hasID = m.Value, true
		}
	}
	if !hasID {
		return "", invalid("$group requires _id")
	}

	var (
		selects []string
		groupBy []string
		cols    []column
		global  bool
	)

	switch {
	case isObject(idRaw):
		keys, err := decodeObject(idRaw)
		if err != nil || len(keys) == 0 {
			return "", invalid("$group: bad _id object")
		}
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			if !identRe.MatchString(k.Key) {
				return "", invalid("bad key %q", k.Key)
			}
			ref, ok := fieldRef(k.Value)
			if !ok {
				return "", invalid("$group: _id.%s must reference a field", k.Key)
			}
			col, err := b.lookup(ref)
			if err != nil {
				return "", err
			}
			pairs = append(pairs, fmt.Sprintf("'%s', %s", k.Key, quote(col.name)))
			groupBy = append(groupBy, quote(col.name))
		}
		selects = append(selects, fmt.Sprintf(`jsonb_build_object(%s) AS "_id"`, strings.Join(pairs, ", ")))
		cols = append(cols, column{"_id", kindJSON})
	default:
		if ref, ok := fieldRef(idRaw); ok {
			col, err := b.lookup(ref)
			if err != nil {
				return "", err
			}
			selects = append(selects, fmt.Sprintf(`%s AS "_id"`, quote(col.name)))
			groupBy = append(groupBy, quote(col.name))
			cols = append(cols, column{"_id", col.kind})
			break
		}
		v, err := decodeScalar(idRaw)
		if err != nil {
			return "", invalid("$group: bad _id")
		}
		switch val := v.(type) {
		case json.Number:
			selects = append(selects, fmt.Sprintf(`%s AS "_id"`, b.bind(val.String(), kindNumber)))
			cols = append(cols, column{"_id", kindNumber})
		case string:
			selects = append(selects, fmt.Sprintf(`%s AS "_id"`, b.bind(val, kindText)))
			cols = append(cols, column{"_id", kindText})
		case bool:
			selects = append(selects, fmt.Sprintf(`%s::boolean AS "_id"`, b.bind(strconv.FormatBool(val), kindText)))
			cols = append(cols, column{"_id", kindText})
		default:
			selects = append(selects, `NULL AS "_id"`)
			cols = append(cols, column{"_id", kindText})
		}
		global = true
	}

	for _, m := range members {
		if m.Key == "_id" {
			continue
		}
		if !identRe.MatchString(m.Key) {
			return "", invalid("bad output name %q", m.Key)
		}
		acc, err := decodeObject(m.Value)
		if err != nil || len(acc) != 1 {
			return "", invalid("$group.%s must hold one accumulator", m.Key)
		}
		expr, k, err := b.accumulator(acc[0].Key, acc[0].Value)
		if err != nil {
			return "", err
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", expr, quote(m.Key)))
		cols = append(cols, column{m.Key, k})
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), b.from(prev))
	if len(groupBy) > 0 {
		q += " GROUP BY " + strings.Join(groupBy, ", ")
	}
	if global {
		// группа без ключа над пустой выборкой не должна давать строку
		q += " HAVING COUNT(*) > 0"
	}
	b.cols = cols
	return q, nil
}

func (b *builder) accumulator(op string, arg json.RawMessage) (string, kind, error) {
	switch op {
	case "$sum":
		if ref, ok := fieldRef(arg); ok {
			col, err := b.numericField(ref)
			if err != nil {
				return "", 0, err
			}
			return fmt.Sprintf("COALESCE(SUM(%s), 0)", quote(col.name)), kindNumber, nil
		}
		v, err := decodeScalar(arg)
		n, ok := v.(json.Number)
		if err != nil || !ok {
			return "", 0, invalid("$sum expects a field or a number")
		}
		f, err := n.Float64()
		if err != nil {
			return "", 0, invalid("$sum: %v", err)
		}
		return fmt.Sprintf("COALESCE(SUM(%s), 0)", strconv.FormatFloat(f, 'g', -1, 64)), kindNumber, nil
	case "$avg":
		ref, ok := fieldRef(arg)
		if !ok {
			return "", 0, invalid("$avg expects a field")
		}
		col, err := b.numericField(ref)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("AVG(%s)", quote(col.name)), kindNumber, nil
	case "$min", "$max":
		ref, ok := fieldRef(arg)
		if !ok {
			return "", 0, invalid("%s expects a field", op)
		}
		col, err := b.lookup(ref)
		if err != nil {
			return "", 0, err
		}
		fn := "MIN"
		if op == "$max" {
			fn = "MAX"
		}
		return fmt.Sprintf("%s(%s)", fn, quote(col.name)), col.kind, nil
	case "$count":
		members, err := decodeObject(arg)
		if err != nil || len(members) != 0 {
			return "", 0, invalid("$count accumulator expects {}")
		}
		return "COUNT(*)", kindNumber, nil
	case "$push", "$addToSet":
		ref, ok := fieldRef(arg)
		if !ok {
			return "", 0, invalid("%s expects a field", op)
		}
		col, err := b.lookup(ref)
		if err != nil {
			return "", 0, err
		}
		if op == "$addToSet" {
			return fmt.Sprintf("jsonb_agg(DISTINCT %s)", quote(col.name)), kindJSON, nil
		}
		return fmt.Sprintf("jsonb_agg(%s)", quote(col.name)), kindJSON, nil
	default:
		return "", 0, invalid("unsupported accumulator %q", op)
	}
}

func (b *builder) numericField(name string) (column, error) {
	col, err := b.lookup(name)
	if err != nil {
		return column{}, err
	}
	if col.kind != kindNumber {
		return column{}, invalid("field %q is not numeric", name)
	}
	return col, nil
}

func (b *builder) sort(prev string, body json.RawMessage) (string, error) {
	members, err := decodeObject(body)
	if err != nil || len(members) == 0 {
		return "", invalid("$sort expects a non-empty object")
	}
	order := make([]string, 0, len(members))
	for _, m := range members {
		col, err := b.lookup(m.Key)
		if err != nil {
			return "", err
		}
		v, err := decodeScalar(m.Value)
		n, ok := v.(json.Number)
		if err != nil || !ok {
			return "", invalid("$sort direction must be 1 or -1")
		}
		switch n.String() {
		case "1":
			order = append(order, quote(col.name)+" ASC")
		case "-1":
			order = append(order, quote(col.name)+" DESC")
		default:
			return "", invalid("$sort direction must be 1 or -1")
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", selectList(b.cols), b.from(prev), strings.Join(order, ", ")), nil
}

func (b *builder) limit(prev string, body json.RawMessage, clause string, allowZero bool) (string, error) {
	v, err := decodeScalar(body)
	n, ok := v.(json.Number)
	if err != nil || !ok {
		return "", invalid("%s expects an integer", clause)
	}
	i, err := n.Int64()
	if err != nil || i < 0 || (i == 0 && !allowZero) {
		return "", invalid("%s expects a positive integer", clause)
	}
	return fmt.Sprintf("SELECT %s FROM %s %s %d", selectList(b.cols), b.from(prev), clause, i), nil
}

func (b *builder) project(prev string, body json.RawMessage) (string, error) {
	members, err := decodeObject(body)
	if err != nil || len(members) == 0 {
		return "", invalid("$project expects a non-empty object")
	}

	type output struct {
		src column
		as  string
	}
	var (
		outputs   []output
		excluded  = make(map[string]bool)
		inclusion bool
	)
	for _, m := range members {
		if !identRe.MatchString(m.Key) {
			return "", invalid("bad field name %q", m.Key)
		}
		if ref, ok := fieldRef(m.Value); ok {
			col, err := b.lookup(ref)
			if err != nil {
				return "", err
			}
			outputs = append(outputs, output{src: col, as: m.Key})
			inclusion = true
			continue
		}
		v, err := decodeScalar(m.Value)
		if err != nil {
			return "", invalid("$project.%s: %v", m.Key, err)
		}
		include, err := projectionFlag(v)
		if err != nil {
			return "", invalid("$project.%s: %v", m.Key, err)
		}
		if !include {
			excluded[m.Key] = true
			continue
		}
		col, err := b.lookup(m.Key)
		if err != nil {
			return "", err
		}
		outputs = append(outputs, output{src: col, as: m.Key})
		inclusion = true
	}

	if inclusion {
		for name := range excluded {
			if name != "_id" {
				return "", invalid("$project cannot mix inclusion and exclusion")
			}
		}
		listed := false
		for _, o := range outputs {
			if o.as == "_id" {
				listed = true
			}
		}
		if !listed && !excluded["_id"] {
			if id, err := b.lookup("_id"); err == nil {
				outputs = append([]output{{src: id, as: "_id"}}, outputs...)
			}
		}
	} else {
		for _, c := range b.cols {
			if !excluded[c.name] {
				outputs = append(outputs, output{src: c, as: c.name})
			}
		}
	}
	if len(outputs) == 0 {
		return "", invalid("$project removes every field")
	}

	seen := make(map[string]bool, len(outputs))
	selects := make([]string, 0, len(outputs))
	cols := make([]column, 0, len(outputs))
	for _, o := range outputs {
		if seen[o.as] {
			return "", invalid("duplicate field %q", o.as)
		}
		seen[o.as] = true
		selects = append(selects, fmt.Sprintf("%s AS %s", quote(o.src.name), quote(o.as)))
		cols = append(cols, column{o.as, o.src.kind})
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), b.from(prev))
	b.cols = cols
	return q, nil
}

func projectionFlag(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	default:
		return false, errors.New("expected 0, 1, true, false or a field reference")
	}
}

func (b *builder) count(prev string, body json.RawMessage) (string, error) {
	v, err := decodeScalar(body)
	name, ok := v.(string)
	if err != nil || !ok || !identRe.MatchString(name) {
		return "", invalid("$count expects a field name")
	}
	q := fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s HAVING COUNT(*) > 0", quote(name), b.from(prev))
	b.cols = []column{{name, kindNumber}}
	return q, nil
}
