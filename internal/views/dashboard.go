package views

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/pbaille/learnlog/internal/cache"
	"github.com/pbaille/learnlog/internal/domain"
	"golang.org/x/sync/errgroup"
)

// RecentLimit is the number of cards shown on the dashboard
const RecentLimit = 6

// Dashboard lists recent resources with aggregate stats
type Dashboard struct {
	v         *Views
	resources []domain.Resource
	summary   domain.Summary
	loaded    bool
}

// Dashboard builds the dashboard view
func (v *Views) Dashboard() *Dashboard {
	return &Dashboard{v: v}
}

// Load reads "resources" and "summary" through the cache, in parallel
func (d *Dashboard) Load(ctx context.Context) error {
	var (
		resources []domain.Resource
		summary   *domain.Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = cache.Query(gctx, d.v.cache, cache.KeyResources, d.v.api.ListResources)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = cache.Query(gctx, d.v.cache, cache.KeySummary, d.v.api.Summary)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}

	d.resources = resources
	d.summary = *summary
	d.loaded = true
	return nil
}

// Stale reports whether any data behind the dashboard was invalidated since Load
func (d *Dashboard) Stale() bool {
	return !d.loaded || d.v.cache.IsStale(cache.KeyResources) || d.v.cache.IsStale(cache.KeySummary)
}

// Summary returns the loaded summary
func (d *Dashboard) Summary() domain.Summary { return d.summary }

// Cards returns cards for the most recent resources
func (d *Dashboard) Cards() []*ResourceCard {
	n := min(len(d.resources), RecentLimit)
	cards := make([]*ResourceCard, n)
	for i := range n {
		cards[i] = d.v.Card(d.resources[i])
	}
	return cards
}

// Render writes the stats, category progress and recent resources
func (d *Dashboard) Render(w io.Writer) error {
	s := d.summary

	var b strings.Builder
	b.WriteString(titleStyle.Render("Dashboard"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📚 Total Resources: %d\n", s.TotalResources)
	fmt.Fprintf(&b, "✅ Completed:       %d\n", s.CompletedResources)
	fmt.Fprintf(&b, "⏳ In Progress:     %d\n", s.InProgress())
	fmt.Fprintf(&b, "⏰ Total Time:      %s\n", domain.FormatMinutes(s.TotalTimeSpent))

	if len(s.CategoryStats) > 0 {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("Progress by Category"))
		b.WriteString("\n")

		width := 0
		for _, c := range s.CategoryStats {
			width = max(width, len([]rune(c.ID)))
		}
		bar := progress.New(progress.WithWidth(24), progress.WithoutPercentage(), progress.WithSolidFill("42"))
		for _, c := range s.CategoryStats {
			pct := c.CompletionPercentage / 100
			fmt.Fprintf(&b, "  %-*s %s %3d%%\n", width, c.ID, bar.ViewAs(pct), int(math.Round(c.CompletionPercentage)))
		}
	}

	b.WriteString("\n")
	b.WriteString(headingStyle.Render("Recent Resources"))
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	cards := d.Cards()
	if len(cards) == 0 {
		_, err := io.WriteString(w, mutedStyle.Render("No resources added yet. Use 'learnlog add' to add your first resource.")+"\n")
		return err
	}
	for _, c := range cards {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := c.Render(w); err != nil {
			return err
		}
	}
	return nil
}
