// Package app wires repositories, the selection engine and the application
// services into one graph shared by the server and the CLI.
package app

import (
	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/policy"
	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	"github.com/bytesize-travel/service-curation/internal/lock"
	"github.com/bytesize-travel/service-curation/internal/metrics"
	"github.com/bytesize-travel/service-curation/internal/saga"
	"github.com/bytesize-travel/service-curation/internal/schedule"
	"github.com/bytesize-travel/service-curation/internal/selection"
	"go.uber.org/zap"
)

// Deps are the infrastructure pieces the graph is built on.
type Deps struct {
	Content   content.ContentRepository
	Runs      run.RunRepository
	Publisher kafka.Publisher
	Locker    lock.Locker
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	Selection selection.Config
	Cadences  []schedule.Cadence
	Policies  map[content.Category]policy.Policy
}

// Services is the wired application graph.
type Services struct {
	Policies *policy.Table
	Engine   *selection.Engine
	Recorder *selection.UsageRecorder
	Saga     *saga.PublicationSagaService
	Curation *application.CurationService
	Content  *application.ContentService
	Metrics  *metrics.Metrics
}

// Wire builds the service graph. Nil Publisher, Locker and Metrics fall back
// to a dropping publisher, an in-process locker and a private registry.
func Wire(d Deps) *Services {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = kafka.NopPublisher{Logger: d.Logger}
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocalLocker()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewMetrics(nil)
	}

	policies := policy.NewTable(d.Policies)
	engine := selection.NewEngine(d.Content, policies, d.Logger.Named("selection"), selection.WithObserver(d.Metrics))
	recorder := selection.NewUsageRecorder(d.Content, d.Logger.Named("usage"))
	sagaSvc := saga.NewPublicationSagaService(d.Runs, recorder, d.Publisher, d.Logger.Named("saga"))

	curation := application.NewCurationService(
		engine,
		recorder,
		sagaSvc,
		d.Content,
		d.Runs,
		policies,
		d.Locker,
		d.Publisher,
		d.Metrics,
		application.CurationConfig{Selection: d.Selection, Cadences: d.Cadences},
		d.Logger,
	)

	return &Services{
		Policies: policies,
		Engine:   engine,
		Recorder: recorder,
		Saga:     sagaSvc,
		Curation: curation,
		Content:  application.NewContentService(d.Content, d.Metrics, d.Logger),
		Metrics:  d.Metrics,
	}
}
