// Package system manages the lifecycle of background components such as the
// quote refresher and the HTTP server.
package system

import "context"

// Service is a lifecycle-managed component. Start must not block; long work
// runs on goroutines owned by the service and ends on Stop.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for components with no background work.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string { return n.ServiceName }

func (NoopService) Start(context.Context) error { return nil }

func (NoopService) Stop(context.Context) error { return nil }
