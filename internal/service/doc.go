// Package service собирает движок команд: окружение, диспетчер,
// сервисы workflow, координаторов и bundle, производителей
// планировщика и push-наблюдение за зависимостями.
//
// Синхронные пользовательские операции (submit, suspend, resume, kill,
// info) выполняются через command.Call и возвращают ошибки предусловий
// вызывающему; вся остальная работа идёт через очередь диспетчера.
package service
