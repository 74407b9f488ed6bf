// Package lock предоставляет блокировки сущностей по ключу.
//
// Команды, изменяющие одну сущность (обычно по ID владеющего job),
// сериализуются через Table; команды разных сущностей выполняются
// параллельно.
package lock
