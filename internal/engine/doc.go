// Package engine понимает структуру приложений.
//
// Включает:
//   - parser.go   — разбор и валидация определений workflow, координатора и bundle
//   - dag.go      — построение и обход DAG действий workflow
//   - template.go — рендеринг Go templates для конфигурации действий
//     и параметров запуска действий координатора
package engine
