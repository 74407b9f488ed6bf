// Package domain содержит сущности движка и их статусы.
//
// Три уровня job:
//   - WorkflowJob / WorkflowAction — DAG действий, выполняемых executor'ами
//   - CoordinatorJob / CoordinatorAction — запуск workflow по расписанию
//     после появления входных данных
//   - BundleJob — группа координаторов
//
// ID job имеют суффикс типа (-W, -C, -B), ID действий — "<jobID>@<имя или номер>".
package domain
