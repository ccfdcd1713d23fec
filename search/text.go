package search

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/poiesic/machinerag/core"
)

// UserQuery joins the content of every user turn with newlines.
func UserQuery(turns []core.ChatTurn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role != core.RoleUser {
			continue
		}
		if s := strings.TrimSpace(t.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// BuildContext renders sources as "[S1] text" blocks separated by blank lines.
func BuildContext(sources []core.Source) string {
	var sb strings.Builder
	for i, s := range sources {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s.Marker)
		sb.WriteByte(' ')
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// CoerceLabels converts hit metadata of any shape into a label map.
// Accepted shapes are map[string]string, map[string]any and a JSON object
// held in a string or byte slice. Anything else yields an empty map.
func CoerceLabels(metadata any) map[string]string {
	switch m := metadata.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := stringify(v); ok {
				out[k] = s
			}
		}
		return out
	case string:
		return coerceJSON([]byte(m))
	case []byte:
		return coerceJSON(m)
	case json.RawMessage:
		return coerceJSON(m)
	}
	return map[string]string{}
}

func coerceJSON(data []byte) map[string]string {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]string{}
	}
	return CoerceLabels(m)
}

func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
