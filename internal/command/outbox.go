package command

import (
	"log/slog"
	"time"
)

// Request — запрос на планирование: что выполнить и через сколько.
//
// Повтор всегда выражается новым экземпляром команды, а не
// повторной постановкой уже выполненного.
type Request struct {
	Callable Callable
	Delay    time.Duration
}

// Later создаёт запрос на выполнение cmd через delay.
func Later[R any](env *Env, cmd Command[R], delay time.Duration) Request {
	return Request{Callable: Bind(env, cmd), Delay: delay}
}

// Outbox — последующие команды, накопленные во время Execute.
// Отправляются только после успешного Execute.
type Outbox struct {
	env      *Env
	requests []Request
}

// NewOutbox создаёт Outbox для окружения env.
func NewOutbox(env *Env) *Outbox {
	return &Outbox{env: env}
}

// Add добавляет запрос.
func (o *Outbox) Add(r Request) {
	o.requests = append(o.requests, r)
}

// Requests возвращает накопленные запросы.
func (o *Outbox) Requests() []Request {
	return o.requests
}

// Env возвращает окружение, в котором создан Outbox.
func (o *Outbox) Env() *Env {
	return o.env
}

// Follow добавляет в out команду cmd с задержкой delay.
func Follow[R any](out *Outbox, cmd Command[R], delay time.Duration) {
	out.Add(Later(out.env, cmd, delay))
}

// flush отправляет запросы: по одному Submit на одиночную задержку,
// SubmitSerial для нескольких запросов с одинаковой задержкой.
func (o *Outbox) flush(logger *slog.Logger) {
	if len(o.requests) == 0 || o.env == nil || o.env.Submitter == nil {
		return
	}

	var delays []time.Duration
	groups := make(map[time.Duration][]Callable)
	for _, r := range o.requests {
		if _, ok := groups[r.Delay]; !ok {
			delays = append(delays, r.Delay)
		}
		groups[r.Delay] = append(groups[r.Delay], r.Callable)
	}

	for _, d := range delays {
		cs := groups[d]
		var err error
		if len(cs) == 1 {
			err = o.env.Submitter.Submit(cs[0], d)
		} else {
			err = o.env.Submitter.SubmitSerial(cs, d)
		}
		if err != nil {
			// Периодические сканеры подберут работу позже
			logger.Warn("failed to submit follow-up commands",
				"count", len(cs),
				"delay", d,
				"error", err,
			)
		}
	}
	o.requests = nil
}
