package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// ANSI-цвета статусов.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
)

// statusColors — цвет по статусу job или действия. Остальные статусы без цвета.
var statusColors = map[string]string{
	"SUCCEEDED":     colorGreen,
	"OK":            colorGreen,
	"DONE":          colorGreen,
	"RUNNING":       colorBlue,
	"SUBMITTED":     colorBlue,
	"READY":         colorBlue,
	"PREP":          colorYellow,
	"WAITING":       colorYellow,
	"SUSPENDED":     colorYellow,
	"START_MANUAL":  colorYellow,
	"END_MANUAL":    colorYellow,
	"FAILED":        colorRed,
	"KILLED":        colorRed,
	"ERROR":         colorRed,
	"TIMEDOUT":      colorRed,
	"DONEWITHERROR": colorRed,
	"SAFEMODE":      colorRed,
	"NOWEBSERVICE":  colorYellow,
	"NORMAL":        colorGreen,
}

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	color    bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
// Цвет включается только для терминала и без NO_COLOR.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		color:    !jsonMode && os.Getenv("NO_COLOR") == "" && isTerminal(os.Stdout),
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит таблицу через tabwriter. Пустые ячейки заменяются на "-".
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if c == "" {
				c = "-"
			}
			cells[i] = c
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	tw.Flush()
}

// Section печатает пустую строку и заголовок перед следующей таблицей.
func (o *Output) Section(title string) {
	fmt.Fprintf(o.w, "\n%s:\n", title)
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Status раскрашивает статус для таблиц.
//
// tabwriter считает escape-последовательности шириной ячейки,
// поэтому цвет одинаково сдвигает все строки столбца.
func (o *Output) Status(s string) string {
	c, ok := statusColors[s]
	if !o.color || !ok {
		return s
	}
	return c + s + colorReset
}

// Time переводит RFC3339 из API в локальное время без зоны.
func (o *Output) Time(ts string) string {
	t, ok := parseTime(ts)
	if !ok {
		return ts
	}
	return t.Local().Format(time.DateTime)
}

// Elapsed — длительность между двумя отметками API.
// Пустой end — до текущего момента.
func (o *Output) Elapsed(start, end string) string {
	from, ok := parseTime(start)
	if !ok {
		return ""
	}
	to := time.Now()
	if end != "" {
		if t, ok := parseTime(end); ok {
			to = t
		}
	}
	return formatDuration(to.Sub(from))
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

func parseTime(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// formatDuration округляет до секунд; меньше секунды — миллисекунды.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
