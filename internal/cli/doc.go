// Package cli реализует инструмент командной строки координатора.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с API coordinator-server.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	info, err := client.GetJob(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: coordinator job list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - job: submit, list, info, start, suspend, resume, kill
//   - admin: mode, queue, executors
//
// Определения job читаются из YAML или JSON файлов (gopkg.in/yaml.v3).
// Каждая группа создаётся через фабричную функцию (NewJobCmd, NewAdminCmd),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
