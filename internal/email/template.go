package email

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"oxicrm_backend/internal/domain"
)

// Render replaces every {{key}} placeholder whose key is present in vars with
// the value's string form. Unknown placeholders are left untouched. Values are
// never escaped and inserted text is not expanded again.
func Render(template string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(template, "{{") {
		return template
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", stringify(vars[k]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Rendered is a template after variable substitution.
type Rendered struct {
	Subject  string
	BodyText string
	BodyHTML *string
}

// RenderTemplate renders subject, text body and, when present, the HTML body.
func RenderTemplate(tpl domain.EmailTemplate, vars map[string]any) Rendered {
	out := Rendered{
		Subject:  Render(tpl.Subject, vars),
		BodyText: Render(tpl.BodyText, vars),
	}
	if tpl.BodyHTML != nil {
		html := Render(*tpl.BodyHTML, vars)
		out.BodyHTML = &html
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case fmt.Stringer:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
