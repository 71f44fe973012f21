package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pbaille/learnlog/internal/cache"
	"github.com/pbaille/learnlog/internal/client"
	"github.com/pbaille/learnlog/internal/domain"
)

// ResourceDetails shows a single resource
type ResourceDetails struct {
	v        *Views
	id       string
	resource *domain.Resource
	notFound bool
}

// Details builds the detail view for id
func (v *Views) Details(id string) *ResourceDetails {
	return &ResourceDetails{v: v, id: id}
}

// Load reads the resource through the cache. A missing resource is not an
// error; Render shows it as not found.
func (d *ResourceDetails) Load(ctx context.Context) error {
	r, err := cache.Query(ctx, d.v.cache, cache.ResourceKey(d.id), func(ctx context.Context) (*domain.Resource, error) {
		return d.v.api.GetResource(ctx, d.id)
	})
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			d.resource, d.notFound = nil, true
			return nil
		}
		return fmt.Errorf("load resource %s: %w", d.id, err)
	}
	d.resource, d.notFound = r, false
	return nil
}

// Resource returns the loaded resource, or nil
func (d *ResourceDetails) Resource() *domain.Resource { return d.resource }

// RequestCompletion opens the shared coordinator for this resource. A
// confirmed completion invalidates the detail entry, the list and the summary.
func (d *ResourceDetails) RequestCompletion(ctx context.Context) error {
	return d.v.requestCompletion(ctx, d.resource,
		cache.ResourceKey(d.id), cache.KeyResources, cache.KeySummary)
}

// Render writes the detail page
func (d *ResourceDetails) Render(w io.Writer) error {
	if d.resource == nil {
		msg := "Resource not found\n"
		if !d.notFound {
			msg = "Resource not loaded\n"
		}
		_, err := io.WriteString(w, msg)
		return err
	}
	r := d.resource

	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s   %s   %s\n", r.Type.Icon(), r.Type, r.CategoryName(), statusLabel(r))

	if r.Description != "" {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("Description"))
		fmt.Fprintf(&b, "\n%s\n", r.Description)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Created:    %s\n", r.CreatedAt.Local().Format("2006-01-02"))
	if r.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed:  %s\n", r.CompletedAt.Local().Format("2006-01-02"))
	}
	if r.EstimatedTime > 0 {
		fmt.Fprintf(&b, "Estimated:  %s\n", domain.FormatMinutes(r.EstimatedTime))
	}
	if r.ActualTimeSpent != nil {
		fmt.Fprintf(&b, "Time spent: %s\n", domain.FormatMinutes(*r.ActualTimeSpent))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
