package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений, включая дескрипторы (@hourly, @every 30m).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Frequency — последовательность nominal time координатора.
type Frequency interface {
	// First возвращает первый nominal time не раньше start.
	First(start time.Time) time.Time

	// Next возвращает nominal time, следующий за prev.
	Next(prev time.Time) time.Time
}

// ParseFrequency разбирает частоту координатора.
//
// Целое число — шаг в минутах от start. Иначе — cron-выражение,
// вычисляемое в зоне tz (UTC, если tz пустая или некорректная).
func ParseFrequency(expr, tz string) (Frequency, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFrequency)
	}

	if minutes, err := strconv.Atoi(expr); err == nil {
		if minutes <= 0 {
			return nil, fmt.Errorf("%w: %d minutes", ErrInvalidFrequency, minutes)
		}
		return stepFrequency{step: time.Duration(minutes) * time.Minute}, nil
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse cron expression %q: %v", ErrInvalidFrequency, expr, err)
	}

	// @every — постоянный шаг, отсчитываемый от start
	if every, ok := schedule.(cron.ConstantDelaySchedule); ok {
		return stepFrequency{step: every.Delay}, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return cronFrequency{schedule: schedule, loc: loc}, nil
}

// ValidateFrequency проверяет частоту координатора.
func ValidateFrequency(expr, tz string) error {
	_, err := ParseFrequency(expr, tz)
	return err
}

// NominalTimes возвращает nominal time в [from, to), не больше limit.
func NominalTimes(f Frequency, from, to time.Time, limit int) []time.Time {
	var out []time.Time
	for t := from; t.Before(to) && len(out) < limit; t = f.Next(t) {
		out = append(out, t)
	}
	return out
}

type stepFrequency struct {
	step time.Duration
}

func (f stepFrequency) First(start time.Time) time.Time { return start.UTC() }
func (f stepFrequency) Next(prev time.Time) time.Time   { return prev.Add(f.step).UTC() }

type cronFrequency struct {
	schedule cron.Schedule
	loc      *time.Location
}

func (f cronFrequency) First(start time.Time) time.Time {
	// Next строго больше аргумента, а граница start допустима
	return f.schedule.Next(start.In(f.loc).Add(-time.Second)).UTC()
}

func (f cronFrequency) Next(prev time.Time) time.Time {
	return f.schedule.Next(prev.In(f.loc)).UTC() // в UTC для хранения в БД
}
