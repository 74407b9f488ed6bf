package deps

import "strings"

const (
	// resolvedSep разделяет элементы внутри секции.
	resolvedSep = "#"

	// unresolvedSep отделяет неразрешённые экземпляры от разрешённых URI.
	unresolvedSep = "!!"
)

// Instance — неразрешённый экземпляр входа: имя и выражение
// latest/future.
type Instance struct {
	Name string
	Expr string
}

// Descriptor — отсутствующие зависимости действия.
//
// Строковая форма: "uri1#uri2!!name=latest:0:60:tmpl#name2=future:1:60:tmpl".
// Секция после "!!" присутствует только при наличии неразрешённых экземпляров.
type Descriptor struct {
	Resolved   []string
	Unresolved []Instance
}

// ParseDescriptor разбирает строковую форму дескриптора.
func ParseDescriptor(s string) Descriptor {
	var d Descriptor
	resolved, unresolved, _ := strings.Cut(s, unresolvedSep)

	for _, uri := range strings.Split(resolved, resolvedSep) {
		if uri != "" {
			d.Resolved = append(d.Resolved, uri)
		}
	}
	for _, entry := range strings.Split(unresolved, resolvedSep) {
		if entry == "" {
			continue
		}
		name, expr, ok := strings.Cut(entry, "=")
		if !ok {
			expr, name = name, ""
		}
		d.Unresolved = append(d.Unresolved, Instance{Name: name, Expr: expr})
	}
	return d
}

// String возвращает строковую форму дескриптора.
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(d.Resolved, resolvedSep))

	if len(d.Unresolved) > 0 {
		b.WriteString(unresolvedSep)
		for i, inst := range d.Unresolved {
			if i > 0 {
				b.WriteString(resolvedSep)
			}
			if inst.Name != "" {
				b.WriteString(inst.Name)
				b.WriteString("=")
			}
			b.WriteString(inst.Expr)
		}
	}
	return b.String()
}

// Empty возвращает true, если отсутствующих зависимостей нет.
func (d Descriptor) Empty() bool {
	return len(d.Resolved) == 0 && len(d.Unresolved) == 0
}
