package executor

import (
	"fmt"
	"strings"
	"time"
)

// EmptyResultText 是结果集为空时的固定返回
const EmptyResultText = "Query executed successfully."

// Format 把结果渲染为喂给模型的文本。
// 行集每行一个元组 "(v1, v2)"，行之间以 ",\n" 分隔。
func Format(r Result) string {
	switch r.Kind {
	case KindRows:
		if len(r.Rows) == 0 {
			return EmptyResultText
		}
		lines := make([]string, 0, len(r.Rows))
		for _, row := range r.Rows {
			lines = append(lines, formatRow(row))
		}
		return strings.Join(lines, ",\n")
	case KindRowsAffected:
		return fmt.Sprintf("Non-SELECT query executed successfully. Rows affected: %d", r.RowsAffected)
	case KindFailure:
		if r.Err == nil {
			return "unknown error"
		}
		return r.Err.Error()
	default:
		return ""
	}
}

func formatRow(row []any) string {
	parts := make([]string, 0, len(row))
	for _, v := range row {
		parts = append(parts, formatValue(v))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + x + "'"
	case []byte:
		return "'" + string(x) + "'"
	case time.Time:
		return "'" + x.Format(time.RFC3339) + "'"
	default:
		return fmt.Sprint(x)
	}
}
