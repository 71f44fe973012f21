package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pbaille/learnlog/internal/cache"
	"github.com/pbaille/learnlog/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func statusLabel(r *domain.Resource) string {
	if r.IsCompleted {
		return doneStyle.Render("✅ Completed")
	}
	return pendingStyle.Render("⏳ Pending")
}

// ResourceCard is one entry of the resource list
type ResourceCard struct {
	v        *Views
	resource domain.Resource
}

// Card builds a card for r
func (v *Views) Card(r domain.Resource) *ResourceCard {
	return &ResourceCard{v: v, resource: r}
}

// Resource returns the card's resource
func (c *ResourceCard) Resource() domain.Resource { return c.resource }

// RequestCompletion opens the shared coordinator for this card's resource.
// A confirmed completion invalidates the list and the summary.
func (c *ResourceCard) RequestCompletion(ctx context.Context) error {
	return c.v.requestCompletion(ctx, &c.resource, cache.KeyResources, cache.KeySummary)
}

// Render writes the card
func (c *ResourceCard) Render(w io.Writer) error {
	r := &c.resource

	var b strings.Builder
	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s · %s\n", r.Type.Icon(), r.Type, r.CategoryName())
	if r.Description != "" {
		fmt.Fprintf(&b, "  %s\n", mutedStyle.Render(Truncate(r.Description, 80)))
	}
	fmt.Fprintf(&b, "  %s  %s\n", statusLabel(r), mutedStyle.Render(r.ID))

	_, err := io.WriteString(w, b.String())
	return err
}

// Truncate flattens s to one line and cuts it to max runes
func Truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
