// Package scheduler запускает периодические производители работы.
//
// Scheduler выполняет задачи с фиксированной задержкой; в SAFEMODE
// запуски пропускаются. Производители сканируют хранилище и ставят
// команды в диспетчер последовательными пакетами.
//
// Структура:
//   - scheduler.go — Scheduler (Every, Start, Stop)
//   - producers.go — action checker, materializer, recovery
//   - cron.go      — частота координатора: минуты или cron-выражение
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{Mode: mode, Logger: logger})
//
//	producers := scheduler.NewProducers(scheduler.ProducerConfig{
//	    Store:     store,
//	    Submitter: dispatcher,
//	    Commands:  commands,
//	})
//	producers.Register(sched, time.Minute, time.Minute, 5*time.Minute)
//
//	sched.Start(ctx)
//	defer sched.Stop()
package scheduler
