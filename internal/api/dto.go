package api

import (
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/service"
)

// Job DTOs

// SubmitJobRequest — запрос на отправку job.
type SubmitJobRequest struct {
	service.Definition

	// Start — сразу запустить job после создания.
	Start bool `json:"start,omitempty"`
}

// SubmitJobResponse — ответ с ID созданного job.
type SubmitJobResponse struct {
	ID      string         `json:"id"`
	Type    domain.JobType `json:"type"`
	Started bool           `json:"started"`
}

// JobActionResponse — результат операции над job.
type JobActionResponse struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Admin DTOs

// ModeRequest — запрос на смену режима.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// ModeResponse — текущий режим.
type ModeResponse struct {
	Mode     string `json:"mode"`
	Previous string `json:"previous,omitempty"`
}

// jobTypes — значения параметра type в списке job.
var jobTypes = map[string]domain.JobType{
	"workflow":    domain.JobTypeWorkflow,
	"coordinator": domain.JobTypeCoordinator,
	"bundle":      domain.JobTypeBundle,
}
