package database

import (
	"encoding/json"
	"fmt"
)

type statementResult struct {
	status  string
	result  any
	message string
}

// flattenStatements turns per-statement results into rows. The first failed
// statement becomes a StatementError.
func flattenStatements(statements []statementResult) ([]Row, error) {
	var rows []Row
	for _, st := range statements {
		if st.status != "OK" {
			msg := st.message
			if msg == "" {
				msg = fmt.Sprintf("statement returned status %q", st.status)
			}
			return nil, &StatementError{Message: msg}
		}
		rows = appendRows(rows, st.result)
	}
	return rows, nil
}

func appendRows(rows []Row, result any) []Row {
	switch v := result.(type) {
	case nil:
		return rows
	case []any:
		for _, item := range v {
			rows = append(rows, toRow(item))
		}
		return rows
	case []map[string]any:
		for _, item := range v {
			rows = append(rows, Row(item))
		}
		return rows
	default:
		return append(rows, toRow(v))
	}
}

func toRow(v any) Row {
	switch m := v.(type) {
	case Row:
		return m
	case map[string]any:
		return Row(m)
	case map[any]any:
		row := make(Row, len(m))
		for k, val := range m {
			row[fmt.Sprint(k)] = val
		}
		return row
	default:
		return Row{"value": v}
	}
}

// Decode converts a row into T by way of its JSON form.
func Decode[T any](row Row) (T, error) {
	var out T
	data, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode row into %T: %w", out, err)
	}
	return out, nil
}

// DecodeAll converts every row into T.
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := Decode[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
