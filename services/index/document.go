package index

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/registry"
)

// shouldIndex applies the declaration's indexing predicate. Only a missing field, null or false count as
// false.
func shouldIndex(declaration registry.Declaration, record *recorddb.Record) bool {
	if declaration.If == "" {
		return true
	}

	value, ok := record.Fields[declaration.If]
	if !ok || value == nil {
		return false
	}
	if b, ok := value.(bool); ok {
		return b
	}

	return true
}

// buildDocument renders record as an index document. Every term mapping and text field becomes its own array
// element so phrases cannot match across two source fields.
func buildDocument(declaration registry.Declaration, record *recorddb.Record) (searchdb.Document, error) {
	documentKey := registry.DocumentKey(declaration.EntityType, record.ID)
	fields := map[string]any{
		searchdb.FieldModel:   declaration.EntityType,
		searchdb.FieldModelID: documentKey,
	}

	terms := map[string][]string{}
	for _, term := range declaration.Terms {
		if text := textValue(record.Fields[term.Field]); text != "" {
			terms[term.Code] = append(terms[term.Code], text)
		}
	}
	for code, values := range terms {
		fields[code] = values
	}

	var texts []string
	for _, field := range declaration.Texts {
		if text := textValue(record.Fields[field]); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) > 0 {
		fields[searchdb.FieldText] = texts
		fields[searchdb.FieldStemmed] = texts
	}

	for _, value := range declaration.Values {
		raw := record.Fields[value.Field]
		if raw == nil {
			continue
		}
		converted, err := convertValue(raw, value.Type)
		if err != nil {
			return searchdb.Document{}, fmt.Errorf("field %s of %s: %w", value.Field, documentKey, err)
		}
		fields[searchdb.ValueField(value.Slot)] = converted
	}

	return searchdb.Document{Key: documentKey, Fields: fields}, nil
}

func convertValue(raw any, valueType registry.ValueType) (any, error) {
	switch valueType {
	case registry.ValueTypeDate:
		return toTime(raw)
	case registry.ValueTypeNumber:
		return toFloat(raw)
	default:
		return textValue(raw), nil
	}
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return registry.ParseDate(v)
	}

	return time.Time{}, fmt.Errorf("only time values or date strings are supported for date fields, got %T", raw)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse number %q: %w", v, err)
		}
		return f, nil
	}

	return 0, fmt.Errorf("only numbers are supported for number fields, got %T", raw)
}

func textValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, part := range v {
			parts = append(parts, textValue(part))
		}
		return strings.Join(parts, " ")
	}

	return fmt.Sprint(raw)
}
