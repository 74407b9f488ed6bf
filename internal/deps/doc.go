// Package deps разрешает и проверяет входные зависимости действий координатора.
//
// Включает:
//   - descriptor.go — строковая форма отсутствующих зависимостей
//   - resolver.go   — разрешение экземпляров latest/future
//   - checker.go    — проверка существования (os.Stat, file://, HTTP HEAD)
//   - watcher.go    — push-уведомления о появлении локальных путей (fsnotify)
package deps
