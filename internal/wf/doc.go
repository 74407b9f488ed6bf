// Package wf — команды workflow job и его действий.
//
// Job: PREP → RUNNING → (SUSPENDED ↔ RUNNING) → SUCCEEDED | FAILED | KILLED.
// Действие: PREP → RUNNING → DONE → OK | ERROR; ошибки executor'а
// переводят его в START_RETRY/END_RETRY (повтор свежей командой)
// или START_MANUAL/END_MANUAL (job приостанавливается до Resume).
//
// Порядок запуска действий задаёт DAG из engine; SignalCommand
// вызывается после каждого завершения действия.
package wf
