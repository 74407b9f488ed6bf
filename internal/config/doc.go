// Package config загружает конфигурацию coordinator-server из YAML
// файла с переопределениями из окружения.
package config
