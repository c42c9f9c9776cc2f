package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/meeting-lifecycle/internal/application"
	"github.com/example/meeting-lifecycle/internal/events"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/persistence/memory"
	"github.com/example/meeting-lifecycle/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers, clocks and an in-memory event recorder.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Events      *events.Recorder
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Events:      &events.Recorder{},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Events == nil {
		factory.Events = &events.Recorder{}
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger sets the base logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Services groups the application services built over one store.
type Services struct {
	Store        persistence.Store
	Availability *application.AvailabilityService
	Series       *application.SeriesService
	Workflows    *application.WorkflowService
}

// NewServices wires every service over store. A nil store uses a fresh
// in-memory store.
func (f *ServiceFactory) NewServices(store persistence.Store) Services {
	if store == nil {
		store = memory.New()
	}
	availabilitySvc := application.NewAvailabilityService(store, application.DefaultSlotPolicy(), f.Logger)
	return Services{
		Store:        store,
		Availability: availabilitySvc,
		Series: application.NewSeriesServiceWithLogger(
			store,
			availabilitySvc,
			recurrence.NewEngine(time.UTC),
			f.Events,
			f.IDGenerator.NextFunc(),
			f.Clock.NowFunc(),
			f.Logger,
		),
		Workflows: application.NewWorkflowServiceWithLogger(
			store,
			f.Events,
			f.IDGenerator.NextFunc(),
			f.Clock.NowFunc(),
			f.Logger,
		),
	}
}
