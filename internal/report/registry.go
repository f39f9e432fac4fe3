package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/internal/metrics"
	"github.com/1broseidon/sparkreport/pkg/models"
)

const methodSuffix = "_report"

// MethodName returns the callable name a report is exposed under
func MethodName(name string) string {
	return name + methodSuffix
}

// Descriptor describes a registered report
type Descriptor struct {
	Model      string `json:"model"`
	Name       string `json:"name"`
	Method     string `json:"method"`
	Cumulative bool   `json:"cumulative"`
	Config     Config `json:"config"`
}

type entry struct {
	descriptor Descriptor
	run        Func
}

// Registry maps models to their <name>_report callables
type Registry struct {
	source   Source
	defaults Defaults
	options  []Option
	logger   *logging.Logger
	metrics  *metrics.Metrics
	models   map[string]map[string]*entry
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry whose reports read from src
func NewRegistry(src Source, defaults Defaults, logger *logging.Logger, metrics *metrics.Metrics, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		source:   src,
		defaults: defaults,
		options:  opts,
		logger:   logger,
		metrics:  metrics,
		models:   make(map[string]map[string]*entry),
	}
}

// Register declares a report on a model. Only the name is checked here; the
// configuration is validated when the report runs.
func (r *Registry) Register(model, name string, opts Options) error {
	if model == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalidArgument)
	}
	if name == "" {
		return fmt.Errorf("%w: report name is required", ErrInvalidArgument)
	}

	method := MethodName(name)
	cfg := NewConfig(opts, r.defaults)

	r.mu.Lock()
	defer r.mu.Unlock()

	reports, ok := r.models[model]
	if !ok {
		reports = make(map[string]*entry)
		r.models[model] = reports
	}
	if _, exists := reports[method]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateReport, model, method)
	}

	reports[method] = &entry{
		descriptor: Descriptor{
			Model:      model,
			Name:       name,
			Method:     method,
			Cumulative: opts.Cumulate,
			Config:     cfg,
		},
		run: MakeReport(model, name, opts, r.defaults, r.source, r.options...),
	}

	r.logger.WithComponent(logging.ComponentReport).
		WithEvent(logging.EventReportAdded).
		WithFields(map[string]interface{}{
			"model":  model,
			"method": method,
		}).
		Debug("Report registered")

	return nil
}

// LoadModels registers every report declared in configuration
func (r *Registry) LoadModels(modelConfigs []config.ModelConfig) error {
	for _, model := range modelConfigs {
		for _, def := range model.Reports {
			if err := r.Register(model.Name, def.Name, OptionsFromDefinition(def)); err != nil {
				return err
			}
		}
	}

	r.updateReportCountMetrics()

	r.logger.WithComponent(logging.ComponentReport).
		WithFields(map[string]interface{}{
			"models":  len(modelConfigs),
			"reports": r.Len(),
		}).
		Info("Reports loaded successfully")

	return nil
}

// Len returns the number of registered reports
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, reports := range r.models {
		n += len(reports)
	}
	return n
}

func (r *Registry) lookup(model, method string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports, ok := r.models[model]
	if !ok {
		return nil, fmt.Errorf("%w: model %s", ErrReportNotFound, model)
	}
	e, ok := reports[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrReportNotFound, model, method)
	}
	return e, nil
}

// Lookup returns the callable registered as model.method
func (r *Registry) Lookup(model, method string) (Func, error) {
	e, err := r.lookup(model, method)
	if err != nil {
		return nil, err
	}
	return e.run, nil
}

// Describe returns the descriptor of model.method
func (r *Registry) Describe(model, method string) (Descriptor, error) {
	e, err := r.lookup(model, method)
	if err != nil {
		return Descriptor{}, err
	}
	return e.descriptor, nil
}

// Invoke runs model.method, logging and recording the outcome
func (r *Registry) Invoke(ctx context.Context, model, method string, filters ...models.Conditions) ([]models.PeriodPoint, error) {
	e, err := r.lookup(model, method)
	if err != nil {
		return nil, err
	}
	return r.invoke(ctx, e, filters...)
}

func (r *Registry) invoke(ctx context.Context, e *entry, filters ...models.Conditions) ([]models.PeriodPoint, error) {
	start := time.Now()
	points, err := e.run(ctx, filters...)
	duration := time.Since(start)

	r.logger.ReportRun(e.descriptor.Model, e.descriptor.Name, len(points), duration, err)
	if r.metrics != nil {
		r.metrics.RecordReportRun(e.descriptor.Model, e.descriptor.Name, len(points), duration, err)
	}

	return points, err
}

// Descriptors lists every registered report ordered by model and method
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var descriptors []Descriptor
	for _, reports := range r.models {
		for _, e := range reports {
			descriptors = append(descriptors, e.descriptor)
		}
	}
	sortDescriptors(descriptors)
	return descriptors
}

// ModelDescriptors lists the reports of one model
func (r *Registry) ModelDescriptors(model string) ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports, ok := r.models[model]
	if !ok {
		return nil, fmt.Errorf("%w: model %s", ErrReportNotFound, model)
	}

	descriptors := make([]Descriptor, 0, len(reports))
	for _, e := range reports {
		descriptors = append(descriptors, e.descriptor)
	}
	sortDescriptors(descriptors)
	return descriptors, nil
}

// RunAll runs every report of a model concurrently with the same filters.
// The first failure cancels the remaining runs.
func (r *Registry) RunAll(ctx context.Context, model string, filters ...models.Conditions) (map[string][]models.PeriodPoint, error) {
	r.mu.RLock()
	reports, ok := r.models[model]
	entries := make([]*entry, 0, len(reports))
	for _, e := range reports {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: model %s", ErrReportNotFound, model)
	}

	results := make([][]models.PeriodPoint, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			points, err := r.invoke(gctx, e, filters...)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byMethod := make(map[string][]models.PeriodPoint, len(entries))
	for i, e := range entries {
		byMethod[e.descriptor.Method] = results[i]
	}
	return byMethod, nil
}

// updateReportCountMetrics updates the per-model report gauge
func (r *Registry) updateReportCountMetrics() {
	if r.metrics == nil {
		return
	}

	r.mu.RLock()
	counts := make(map[string]int, len(r.models))
	for model, reports := range r.models {
		counts[model] = len(reports)
	}
	r.mu.RUnlock()

	r.metrics.UpdateReportCounts(counts)
}

func sortDescriptors(descriptors []Descriptor) {
	sort.Slice(descriptors, func(i, j int) bool {
		if descriptors[i].Model != descriptors[j].Model {
			return descriptors[i].Model < descriptors[j].Model
		}
		return strings.Compare(descriptors[i].Method, descriptors[j].Method) < 0
	})
}
