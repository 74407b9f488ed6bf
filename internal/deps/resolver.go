package deps

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Coordinator/internal/engine"
)

const defaultMaxInstances = 100

// Направление поиска экземпляра.
const (
	KindLatest = "latest"
	KindFuture = "future"
)

// Expr — разобранное выражение "latest:<n>:<freqMinutes>:<template>"
// или "future:<n>:<freqMinutes>:<template>".
//
// latest:0 — последний существующий экземпляр не позже nominal time,
// latest:-1 — предпоследний и т.д. future:0 — первый существующий
// экземпляр начиная с nominal time, future:1 — второй.
type Expr struct {
	Kind     string
	N        int
	Freq     time.Duration
	Template string
}

// IsInstance сообщает, является ли s выражением latest/future.
func IsInstance(s string) bool {
	return strings.HasPrefix(s, KindLatest+":") || strings.HasPrefix(s, KindFuture+":")
}

// ParseExpr разбирает выражение экземпляра.
func ParseExpr(s string) (Expr, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || (parts[0] != KindLatest && parts[0] != KindFuture) {
		return Expr{}, fmt.Errorf("%w: %s", ErrInvalidInstance, s)
	}

	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return Expr{}, fmt.Errorf("%w: index %q", ErrInvalidInstance, parts[1])
	}
	if (parts[0] == KindLatest && n > 0) || (parts[0] == KindFuture && n < 0) {
		return Expr{}, fmt.Errorf("%w: index %d out of range for %s", ErrInvalidInstance, n, parts[0])
	}

	freq, err := strconv.Atoi(parts[2])
	if err != nil || freq <= 0 {
		return Expr{}, fmt.Errorf("%w: frequency %q", ErrInvalidInstance, parts[2])
	}

	if parts[3] == "" {
		return Expr{}, fmt.Errorf("%w: empty template", ErrInvalidInstance)
	}

	return Expr{
		Kind:     parts[0],
		N:        n,
		Freq:     time.Duration(freq) * time.Minute,
		Template: parts[3],
	}, nil
}

// ExistenceChecker проверяет существование URI.
type ExistenceChecker interface {
	Exists(ctx context.Context, uri string) (bool, error)
}

// Resolver разрешает экземпляры latest/future в конкретные URI.
type Resolver struct {
	checker      ExistenceChecker
	maxInstances int
	now          func() time.Time
}

// NewResolver создаёт Resolver.
// maxInstances — сколько экземпляров просматривать (default: 100).
func NewResolver(checker ExistenceChecker, maxInstances int) *Resolver {
	if maxInstances <= 0 {
		maxInstances = defaultMaxInstances
	}
	return &Resolver{
		checker:      checker,
		maxInstances: maxInstances,
		now:          time.Now,
	}
}

// Resolve разрешает выражение относительно nominal time.
// ok == false — подходящий экземпляр пока не существует.
func (r *Resolver) Resolve(ctx context.Context, expr string, nominal time.Time) (string, bool, error) {
	e, err := ParseExpr(expr)
	if err != nil {
		return "", false, err
	}

	base := nominal.UTC().Truncate(e.Freq)
	step := e.Freq
	want := e.N
	if e.Kind == KindLatest {
		step = -e.Freq
		want = -e.N
	}

	now := r.now()
	found := 0
	for k := 0; k < r.maxInstances; k++ {
		t := base.Add(time.Duration(k) * step)

		// latest не смотрит на ещё не наступившие экземпляры
		if e.Kind == KindLatest && t.After(now) {
			continue
		}

		uri, err := engine.Render(e.Template, engine.NewNominalContext(t, "", nil, nil))
		if err != nil {
			return "", false, err
		}

		exists, err := r.checker.Exists(ctx, uri)
		if err != nil {
			return "", false, err
		}
		if !exists {
			continue
		}

		if found == want {
			return uri, true, nil
		}
		found++
	}

	return "", false, nil
}
