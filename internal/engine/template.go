package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Context — контекст для рендеринга конфигурации действий workflow.
//
// Используется в Go templates для доступа к данным:
//   - {{ .JobID }}
//   - {{ .Conf.param_name }}
//   - {{ (index .Actions "fetch").Data.status_code }}
type Context struct {
	// JobID — ID workflow job.
	JobID string `json:"job_id"`

	// Conf — параметры запуска job.
	Conf map[string]string `json:"conf"`

	// Actions — результаты завершённых действий.
	Actions map[string]*ActionResult `json:"actions"`
}

// ActionResult — результат действия для использования в шаблонах.
type ActionResult struct {
	// Data — данные executor'а.
	Data map[string]string `json:"data"`

	// Status — статус действия: "OK", "ERROR".
	Status string `json:"status"`
}

// NewContext создаёт новый контекст с параметрами job.
func NewContext(jobID string, conf map[string]string) *Context {
	if conf == nil {
		conf = make(map[string]string)
	}
	return &Context{
		JobID:   jobID,
		Conf:    conf,
		Actions: make(map[string]*ActionResult),
	}
}

// AddActionResult добавляет результат действия в контекст.
func (c *Context) AddActionResult(name string, data map[string]string, status string) {
	if data == nil {
		data = make(map[string]string)
	}
	c.Actions[name] = &ActionResult{
		Data:   data,
		Status: status,
	}
}

// NominalContext — контекст рендеринга для действия координатора.
//
//	{{ .YEAR }}/{{ .MONTH }}/{{ .DAY }}/{{ .HOUR }}/{{ .MINUTE }}
//	{{ .NominalTime }}        — RFC3339
//	{{ .Inputs.logs }}        — разрешённый URI входа
//	{{ .Conf.param }}         — параметры координатора
//	{{ dateOffset .Nominal -60 | formatTime "2006-01-02" }}
type NominalContext struct {
	Nominal     time.Time
	NominalTime string
	YEAR        string
	MONTH       string
	DAY         string
	HOUR        string
	MINUTE      string
	ActionID    string
	Inputs      map[string]string
	Conf        map[string]string
}

// NewNominalContext создаёт контекст для момента t (в UTC).
func NewNominalContext(t time.Time, actionID string, inputs, conf map[string]string) *NominalContext {
	t = t.UTC()
	return &NominalContext{
		Nominal:     t,
		NominalTime: t.Format(time.RFC3339),
		YEAR:        t.Format("2006"),
		MONTH:       t.Format("01"),
		DAY:         t.Format("02"),
		HOUR:        t.Format("15"),
		MINUTE:      t.Format("04"),
		ActionID:    actionID,
		Inputs:      inputs,
		Conf:        conf,
	}
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// toJSON — алиас для json
	"toJSON": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	},

	// fromJSON — парсит JSON строку
	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split — разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},

	// contains — проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// hasPrefix — проверяет префикс строки
	"hasPrefix": strings.HasPrefix,

	// hasSuffix — проверяет суффикс строки
	"hasSuffix": strings.HasSuffix,

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// replace — заменяет подстроку
	"replace": strings.ReplaceAll,

	// dateOffset — сдвигает время на заданное число минут
	"dateOffset": func(t time.Time, minutes int) time.Time {
		return t.Add(time.Duration(minutes) * time.Minute)
	},

	// formatTime — форматирует время по layout Go
	"formatTime": func(layout string, t time.Time) string {
		return t.Format(layout)
	},
}

// Render рендерит строковый шаблон с данными data
// (обычно *Context или *NominalContext).
func Render(tmpl string, data any) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice.
func RenderValue(value any, data any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return Render(v, data)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, data)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, data)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, data)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, data)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Для остальных типов (int, float, bool) возвращаем как есть
		return value, nil
	}
}

// RenderConfig рендерит конфигурацию действия.
// Это обёртка над RenderValue для map[string]any.
func RenderConfig(config map[string]any, data any) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, data)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}

// RenderStrings рендерит все значения map[string]string.
func RenderStrings(values map[string]string, data any) (map[string]string, error) {
	result := make(map[string]string, len(values))
	for key, val := range values {
		rendered, err := Render(val, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		result[key] = rendered
	}
	return result, nil
}
