// Package bundle — команды bundle: набора координаторов, которые
// запускаются, приостанавливаются и завершаются вместе.
//
// Каждый координатор bundle отражён в BundleJob.Actions. Команда bundle
// увеличивает Pending действия и ставит соответствующую команду
// координатора; переход координатора возвращается через
// StatusUpdateCommand, который снимает Pending и, когда все
// координаторы финальные, вычисляет итоговый статус bundle.
package bundle
