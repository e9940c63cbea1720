package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
)

// 服务层错误
var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidInput      = errors.New("invalid input")
	ErrClientNotFound    = errors.New("client not found")
	ErrDuplicatePAN      = errors.New("a client with this PAN already exists")
	ErrEngagementMissing = errors.New("client service not found")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentNotPending = errors.New("payment is not pending")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// actorFrom 从 context 获取操作人
func actorFrom(ctx context.Context) (workflow.Actor, error) {
	actor, ok := workflow.ActorFromContext(ctx)
	if !ok {
		return workflow.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

// writerFrom 获取可写操作人,只读角色返回 ErrNotPermitted
func writerFrom(ctx context.Context) (workflow.Actor, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return actor, err
	}
	if actor.ReadOnly() {
		return actor, workflow.ErrNotPermitted
	}
	return actor, nil
}
