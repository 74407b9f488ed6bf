// Package command задаёт единый жизненный цикл команд.
//
// Каждая изменяющая операция системы — команда: она проверяет
// предусловия без блокировки, захватывает блокировку сущности,
// перепроверяет предусловия, выполняет мутацию и ставит последующие
// команды в очередь. Экземпляр команды выполняется не более одного раза;
// повтор — это новый экземпляр с задержкой (Request).
//
// Структура:
//   - kind.go — перечисление типов команд и групп логирования
//   - command.go — Command, Meta, Base, Env, Callable, Submitter
//   - lifecycle.go — Call (синхронно) и Bind (для очереди)
//   - outbox.go — последующие команды и запросы повтора
//   - errors.go — предусловия, коды ошибок
//   - metrics.go — Prometheus метрики
package command
