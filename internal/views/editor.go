package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/learnlog/internal/cache"
	"github.com/pbaille/learnlog/internal/domain"
)

var ErrBlankCategory = errors.New("please enter a category name")

// Editor creates, updates and deletes resources and categories
type Editor struct {
	v *Views
}

// Editor builds the resource editor
func (v *Views) Editor() *Editor {
	return &Editor{v: v}
}

// Categories returns the cached category list
func (e *Editor) Categories(ctx context.Context) ([]domain.Category, error) {
	return cache.Query(ctx, e.v.cache, cache.KeyCategories, e.v.api.ListCategories)
}

// ResolveCategory finds a category by id or case-insensitive name
func (e *Editor) ResolveCategory(ctx context.Context, ref string) (*domain.Category, error) {
	cats, err := e.Categories(ctx)
	if err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	for i := range cats {
		if cats[i].ID == ref || strings.EqualFold(cats[i].Name, ref) {
			return &cats[i], nil
		}
	}
	return nil, fmt.Errorf("category %q not found", ref)
}

// CreateCategory adds a category and invalidates the category list
func (e *Editor) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		e.v.notifier.Error(ErrBlankCategory.Error())
		return nil, ErrBlankCategory
	}

	cat, err := e.v.api.CreateCategory(ctx, name)
	if err != nil {
		e.v.notifier.Error("Failed to create category")
		return nil, fmt.Errorf("create category: %w", err)
	}
	e.v.cache.Invalidate(cache.KeyCategories)
	e.v.notifier.Success("Category created successfully!")
	return cat, nil
}

// CreateResource adds a resource and invalidates the list and the summary
func (e *Editor) CreateResource(ctx context.Context, in domain.ResourceInput) (*domain.Resource, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r, err := e.v.api.CreateResource(ctx, in)
	if err != nil {
		e.v.notifier.Error("Failed to add resource")
		return nil, fmt.Errorf("create resource: %w", err)
	}
	e.v.cache.Invalidate(cache.KeyResources)
	e.v.cache.Invalidate(cache.KeySummary)
	e.v.notifier.Success("Resource added successfully!")
	return r, nil
}

// UpdateResource edits a resource and invalidates every view of it
func (e *Editor) UpdateResource(ctx context.Context, id string, in domain.ResourceInput) (*domain.Resource, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r, err := e.v.api.UpdateResource(ctx, id, in)
	if err != nil {
		e.v.notifier.Error("Failed to update resource")
		return nil, fmt.Errorf("update resource: %w", err)
	}
	e.invalidateResource(id)
	e.v.notifier.Success("Resource updated successfully!")
	return r, nil
}

// DeleteResource removes a resource and invalidates every view of it
func (e *Editor) DeleteResource(ctx context.Context, id string) error {
	if err := e.v.api.DeleteResource(ctx, id); err != nil {
		e.v.notifier.Error("Failed to delete resource")
		return fmt.Errorf("delete resource: %w", err)
	}
	e.invalidateResource(id)
	e.v.notifier.Success("Resource deleted")
	return nil
}

func (e *Editor) invalidateResource(id string) {
	e.v.cache.Invalidate(cache.KeyResources)
	e.v.cache.Invalidate(cache.ResourceKey(id))
	e.v.cache.Invalidate(cache.KeySummary)
}
