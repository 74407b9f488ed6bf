// Package dispatcher реализует пул исполнения команд.
//
// Dispatcher забирает единицы работы (command.Callable) из очереди
// с приоритетами и задержкой и выполняет их фиксированным набором горутин.
//
// Перед запуском единицы:
//   - в SAFEMODE она возвращается в очередь с SafeModeDelay
//   - при превышении MaxConcurrency для её типа — с ConcurrencyDelay
//
// SubmitSerial объединяет несколько единиц в одну составную: участники
// выполняются последовательно в одном слоте, ошибка одного участника
// не мешает следующим.
package dispatcher
