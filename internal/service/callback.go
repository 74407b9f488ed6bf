package service

import (
	"context"
	"fmt"

	"github.com/shaiso/Coordinator/internal/command"
	"github.com/shaiso/Coordinator/internal/domain"
	"github.com/shaiso/Coordinator/internal/mq"
	"github.com/shaiso/Coordinator/internal/telemetry"
	"github.com/shaiso/Coordinator/internal/wf"
)

// HandleCallback — обработчик очереди обратных вызовов внешних систем.
// Ставит немедленную проверку действия workflow.
func (s *Service) HandleCallback(ctx context.Context, msg *mq.Message) error {
	if msg.Type != mq.MessageTypeActionCallback {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrDrop, msg.Type)
	}

	cb, err := mq.ParsePayload[mq.CallbackPayload](msg)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrDrop, err)
	}
	if t, ok := domain.JobTypeOf(cb.ActionID); !ok || t != domain.JobTypeWorkflow {
		return fmt.Errorf("%w: not a workflow action %q", mq.ErrDrop, cb.ActionID)
	}

	logger := telemetry.WithActionID(s.logger, cb.ActionID)
	logger.Debug("action callback received", "external_status", cb.ExternalStatus)

	c := command.Bind(s.env, wf.NewActionCallbackCommand(s.workflow, cb.ActionID))
	if err := s.dispatcher.Submit(c, 0); err != nil {
		// очередь заполнена — сообщение вернётся в брокер
		return fmt.Errorf("queue callback check: %w", err)
	}
	return nil
}
