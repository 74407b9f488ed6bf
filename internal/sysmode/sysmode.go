// Package sysmode хранит административный режим процесса.
//
// Режим создаётся вместе с сервисом и передаётся диспетчеру,
// планировщику и API явно; глобального состояния нет.
package sysmode

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode — административный режим.
type Mode int32

const (
	// Normal — обычная работа.
	Normal Mode = iota

	// NoWebService — внешние изменяющие запросы отклоняются,
	// фоновая обработка продолжается.
	NoWebService

	// SafeMode — новая работа не принимается, уже поставленная откладывается.
	SafeMode
)

// ErrUnknownMode — строка не соответствует ни одному режиму.
var ErrUnknownMode = errors.New("unknown system mode")

// String возвращает имя режима.
func (m Mode) String() string {
	switch m {
	case Normal:
		return "NORMAL"
	case NoWebService:
		return "NOWEBSERVICE"
	case SafeMode:
		return "SAFEMODE"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// Parse парсит имя режима (без учёта регистра).
func Parse(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NORMAL":
		return Normal, nil
	case "NOWEBSERVICE":
		return NoWebService, nil
	case "SAFEMODE":
		return SafeMode, nil
	default:
		return Normal, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Switch — потокобезопасный переключатель режима.
// Нулевое значение соответствует Normal.
type Switch struct {
	v atomic.Int32
}

// NewSwitch создаёт переключатель с начальным режимом.
func NewSwitch(initial Mode) *Switch {
	s := &Switch{}
	s.Set(initial)
	return s
}

// Get возвращает текущий режим. Для nil-переключателя — Normal.
func (s *Switch) Get() Mode {
	if s == nil {
		return Normal
	}
	return Mode(s.v.Load())
}

// Set устанавливает режим и возвращает предыдущий.
func (s *Switch) Set(m Mode) Mode {
	return Mode(s.v.Swap(int32(m)))
}

// IsSafeMode — сокращение для Get() == SafeMode.
func (s *Switch) IsSafeMode() bool {
	return s.Get() == SafeMode
}
