package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	itrpcommand "github.com/goliatone/go-itrp/command"
	"github.com/goliatone/go-itrp/core"
	"github.com/goliatone/go-itrp/jobs"
	itrpquery "github.com/goliatone/go-itrp/query"
)

var ErrRegistryNotConfigured = errors.New("gocommand: registry is not configured")

// ValidateMessageContract requires a non-empty Type() and runs Validate()
// when the message has one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// RegistryAdapter owns the go-command registry the itrp handlers are
// registered in. Resolvers added before Initialize see every handler.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return ErrRegistryNotConfigured
	}
	return nil
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a.ready() != nil {
		return nil
	}
	return a.registry
}

// RegisterCommand registers a command or query handler.
func (a *RegistryAdapter) RegisterCommand(handler any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered handlers into a go-job queue registry
// so they can also run from queued messages.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	return a.ready() == nil && a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the global dispatcher and registers
// it. The subscription is dropped again when registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return subscribeThenRegister(adapter, cmd, commanddispatcher.SubscribeCommand(cmd, runnerOpts...))
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return subscribeThenRegister(adapter, qry, commanddispatcher.SubscribeQuery(qry, runnerOpts...))
}

func subscribeThenRegister(adapter *RegistryAdapter, handler any, subscription commanddispatcher.Subscription) (commanddispatcher.Subscription, error) {
	if err := adapter.RegisterCommand(handler); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Handlers are the services behind the itrp commands and queries. Nil
// members skip the handlers that need them.
type Handlers struct {
	Jobs        itrpcommand.JobService
	Attachments itrpcommand.AttachmentService
	Records     itrpcommand.RecordWriter
	JobReader   jobs.Reader
	Walker      itrpquery.RecordWalker
}

// RegisterHandlers registers and subscribes every itrp command and query
// whose service is present. On failure the subscriptions made so far are
// removed.
func RegisterHandlers(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) ([]commanddispatcher.Subscription, error) {
	var subscriptions []commanddispatcher.Subscription
	register := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			for _, existing := range subscriptions {
				existing.Unsubscribe()
			}
			subscriptions = nil
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if handlers.Jobs != nil {
		if err := register(RegisterAndSubscribe[itrpcommand.StartImportMessage](adapter, itrpcommand.NewStartImportCommand(handlers.Jobs), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := register(RegisterAndSubscribe[itrpcommand.StartExportMessage](adapter, itrpcommand.NewStartExportCommand(handlers.Jobs), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.Attachments != nil {
		if err := register(RegisterAndSubscribe[itrpcommand.UploadAttachmentsMessage](adapter, itrpcommand.NewUploadAttachmentsCommand(handlers.Attachments), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.Records != nil {
		if err := register(RegisterAndSubscribe[itrpcommand.SaveRecordMessage](adapter, itrpcommand.NewSaveRecordCommand(handlers.Records), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.JobReader != nil {
		if err := register(RegisterAndSubscribeQuery[itrpquery.GetJobMessage, jobs.Entry](adapter, itrpquery.NewGetJobQuery(handlers.JobReader), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := register(RegisterAndSubscribeQuery[itrpquery.ListJobsMessage, []jobs.Entry](adapter, itrpquery.NewListJobsQuery(handlers.JobReader), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.Walker != nil {
		if err := register(RegisterAndSubscribeQuery[itrpquery.ListRecordsMessage, []core.Record](adapter, itrpquery.NewListRecordsQuery(handlers.Walker), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subscriptions, nil
}
