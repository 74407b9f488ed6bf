// Package queue реализует ограниченную очередь с приоритетами и задержкой.
//
// Очередь хранит две кучи:
//   - готовые элементы (priority desc, порядок вставки asc)
//   - отложенные элементы (по времени готовности)
//
// Отложенный элемент никогда не извлекается раньше своего времени.
// При заполнении Offer сразу возвращает false — обратное давление
// остаётся на вызывающей стороне.
package queue
