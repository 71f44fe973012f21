// Package views renders the dashboard, resource cards and resource details
// in the terminal. Every view that can complete a resource does so through
// the shared completion.Coordinator it was constructed with.
package views

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pbaille/learnlog/internal/cache"
	"github.com/pbaille/learnlog/internal/completion"
	"github.com/pbaille/learnlog/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrNoAPI            = errors.New("views: API client is required")
	ErrNoCache          = errors.New("views: cache is required")
	ErrNoCoordinator    = errors.New("views: completion coordinator is required")
	ErrAlreadyCompleted = errors.New("resource is already completed")
	ErrNotLoaded        = errors.New("resource not loaded")
)

// API is the subset of the REST client the views call
type API interface {
	ListResources(ctx context.Context) ([]domain.Resource, error)
	GetResource(ctx context.Context, id string) (*domain.Resource, error)
	CreateResource(ctx context.Context, in domain.ResourceInput) (*domain.Resource, error)
	UpdateResource(ctx context.Context, id string, in domain.ResourceInput) (*domain.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	MarkComplete(ctx context.Context, id string, req domain.CompleteRequest) (*domain.Resource, error)
	Summary(ctx context.Context) (*domain.Summary, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
}

// Notifier shows short success and failure messages
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type logNotifier struct{ logger *zap.Logger }

func (n logNotifier) Success(msg string) { n.logger.Info(msg) }
func (n logNotifier) Error(msg string)   { n.logger.Warn(msg) }

// Deps are the collaborators shared by every view
type Deps struct {
	API         API
	Cache       *cache.Cache
	Coordinator *completion.Coordinator
	Notifier    Notifier
	Logger      *zap.Logger
}

// Views builds views over one set of Deps and tracks their in-flight mutations
type Views struct {
	api      API
	cache    *cache.Cache
	coord    *completion.Coordinator
	notifier Notifier
	logger   *zap.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// New checks the required collaborators and returns a Views
func New(d Deps) (*Views, error) {
	switch {
	case d.API == nil:
		return nil, ErrNoAPI
	case d.Cache == nil:
		return nil, ErrNoCache
	case d.Coordinator == nil:
		return nil, ErrNoCoordinator
	}

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = logNotifier{logger: logger}
	}

	return &Views{
		api:      d.API,
		cache:    d.Cache,
		coord:    d.Coordinator,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Coordinator returns the shared completion coordinator
func (v *Views) Coordinator() *completion.Coordinator { return v.coord }

// Wait blocks until every started completion mutation has finished and
// returns their joined errors.
func (v *Views) Wait() error {
	v.wg.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	err := errors.Join(v.errs...)
	v.errs = nil
	return err
}

// requestCompletion opens the coordinator for r. On confirm the mutation
// runs on its own goroutine and, once it succeeds, invalidates keys.
func (v *Views) requestCompletion(ctx context.Context, r *domain.Resource, keys ...cache.Key) error {
	if r == nil {
		return ErrNotLoaded
	}
	if r.IsCompleted {
		return fmt.Errorf("%s: %w", r.ID, ErrAlreadyCompleted)
	}

	id := r.ID
	v.coord.Open(completion.Command{
		ResourceID: id,
		OnConfirm: func(minutes int) {
			v.wg.Add(1)
			go func() {
				defer v.wg.Done()
				if err := v.complete(ctx, id, minutes, keys); err != nil {
					v.mu.Lock()
					v.errs = append(v.errs, err)
					v.mu.Unlock()
				}
			}()
		},
	})
	return nil
}

func (v *Views) complete(ctx context.Context, id string, minutes int, keys []cache.Key) error {
	_, err := v.api.MarkComplete(ctx, id, domain.CompleteRequest{ActualTimeSpent: minutes})
	if err != nil {
		v.logger.Warn("mark complete failed", zap.String("resource", id), zap.Error(err))
		v.notifier.Error("Failed to update resource")
		return fmt.Errorf("mark %s complete: %w", id, err)
	}

	for _, k := range keys {
		v.cache.Invalidate(k)
	}
	v.notifier.Success("Resource marked as completed!")
	return nil
}
