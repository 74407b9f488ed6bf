// Package repo хранит job и действия всех трёх уровней.
//
// Две реализации Store: PGStore (PostgreSQL через pgx) и MemoryStore.
// Транзакция передаётся через context: методы, вызванные с ctx из InTx,
// видят и меняют одно и то же состояние.
package repo
