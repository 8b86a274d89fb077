package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const oidKey = "$oid"

// NormalizeID приводит id товара к строке. Поддерживаются два варианта представления:
// обёртка вида {"$oid": "..."} (выгрузка MongoDB) и любое скалярное значение.
// Для nil возвращается пустая строка.
func NormalizeID(raw any) string {
	if wrapped, ok := raw.(map[string]any); ok {
		if inner, ok := wrapped[oidKey]; ok {
			return NormalizeID(inner)
		}
	}

	s, _ := scalarString(raw)
	return s
}

// scalarString переводит скалярное JSON-значение в строку.
// Второй результат false для nil.
func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return fmt.Sprint(val), true
	}
}

// textField возвращает строковое поле записи; отсутствующее или null поле становится "".
func textField(raw map[string]any, key string) string {
	s, _ := scalarString(unwrapExtended(raw[key]))
	return s
}

// unwrapExtended снимает обёртки расширенного JSON MongoDB ({"$numberDecimal": "1.5"} и т.п.).
func unwrapExtended(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}

	for key, inner := range m {
		if strings.HasPrefix(key, "$number") {
			return inner
		}
	}

	return v
}

// parsePrice разбирает цену из числа или строки ("$1,299.00"). Для нечитаемых значений возвращает nil.
func parsePrice(v any) *decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)

	switch val := unwrapExtended(v).(type) {
	case nil:
		return nil
	case json.Number:
		d, err = decimal.NewFromString(val.String())
	case float64:
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case string:
		d, err = decimal.NewFromString(cleanNumber(val))
	default:
		return nil
	}
	if err != nil {
		return nil
	}

	return &d
}

// parseRatings разбирает рейтинг из числа или числовой строки. Для нечитаемых значений возвращает nil.
func parseRatings(v any) *float64 {
	var (
		f   float64
		err error
	)

	switch val := unwrapExtended(v).(type) {
	case nil:
		return nil
	case json.Number:
		f, err = val.Float64()
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		f, err = strconv.ParseFloat(cleanNumber(val), 64)
	default:
		return nil
	}
	if err != nil {
		return nil
	}

	return &f
}

// cleanNumber убирает символы валют, пробелы и разделители тысяч.
func cleanNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '₹', '£', '₽', ',', ' ', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// imageURLs возвращает список ссылок на изображения. Не-массив даёт пустой список,
// нестроковые элементы отбрасываются.
func imageURLs(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	urls := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			urls = append(urls, s)
		}
	}

	return urls
}
