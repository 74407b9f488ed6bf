package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Coordinator/internal/command"
)

const compositePrefix = "#composite#"

// composite — несколько единиц, выполняемых последовательно
// в одном слоте очереди.
type composite struct {
	members  []command.Callable
	priority int
	created  time.Time
	name     string
}

func newComposite(cs []command.Callable) *composite {
	c := &composite{
		members:  cs,
		priority: cs[0].Priority(),
		created:  cs[0].CreatedAt(),
	}

	names := make([]string, len(cs))
	for i, m := range cs {
		names[i] = m.Name()
		c.priority = max(c.priority, m.Priority())
		if m.CreatedAt().Before(c.created) {
			c.created = m.CreatedAt()
		}
	}
	c.name = "[" + strings.Join(names, ",") + "]"
	return c
}

func (c *composite) Name() string         { return c.name }
func (c *composite) Kind() command.Kind   { return c.members[0].Kind() }
func (c *composite) Priority() int        { return c.priority }
func (c *composite) CreatedAt() time.Time { return c.created }

// Call выполняет всех участников по порядку и возвращает их ошибки.
// Диспетчер запускает участников сам, по одному.
func (c *composite) Call(ctx context.Context) error {
	var errs []error
	for _, m := range c.members {
		if err := m.Call(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// kindKey возвращает ключ лимита параллелизма.
func kindKey(c command.Callable) string {
	if comp, ok := c.(*composite); ok {
		return compositePrefix + comp.Kind().String()
	}
	return c.Kind().String()
}
