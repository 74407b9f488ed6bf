// Package coord — команды координатора и его действий.
//
// Координатор материализует действия по расписанию (MaterializeCommand),
// каждое действие ждёт входов (InputCheckCommand), затем отправляется
// с учётом Concurrency (ReadyCommand) и запускает workflow
// (ActionStartCommand). Переходы workflow возвращаются через
// ActionUpdateCommand; StatusTransitCommand завершает координатор,
// когда все действия финальные.
//
// Все команды блокируют ID координатора.
package coord
