package main

import (
	"fmt"
	"os"

	"github.com/pbaille/learnlog/internal/domain"
	"github.com/pbaille/learnlog/internal/fetcher"
	"github.com/pbaille/learnlog/internal/views"
	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show stats and recent resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			dash := a.views.Dashboard()
			if err := dash.Load(cmd.Context()); err != nil {
				return err
			}
			return dash.Render(os.Stdout)
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show aggregate progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.api.Summary(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Total:       %d\n", s.TotalResources)
			fmt.Printf("Completed:   %d\n", s.CompletedResources)
			fmt.Printf("In progress: %d\n", s.InProgress())
			fmt.Printf("Time spent:  %s\n", domain.FormatMinutes(s.TotalTimeSpent))
			for _, c := range s.CategoryStats {
				fmt.Printf("  %-20s %d/%d (%.0f%%)\n", c.ID, c.Completed, c.Total, c.CompletionPercentage)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			resources, err := a.api.ListResources(cmd.Context())
			if err != nil {
				return err
			}

			if len(resources) == 0 {
				fmt.Println("No resources yet. Use 'learnlog add' to create one.")
				return nil
			}

			for _, r := range resources {
				if pending && r.IsCompleted {
					continue
				}
				mark := " "
				if r.IsCompleted {
					mark = "✓"
				}
				fmt.Printf("%s %s  %-8s %s\n", mark, r.ID[:min(8, len(r.ID))], r.Type, views.Truncate(r.Title, 60))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only show resources not yet completed")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show resource details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.resolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			details := a.views.Details(id)
			if err := details.Load(cmd.Context()); err != nil {
				return err
			}
			return details.Render(os.Stdout)
		},
	}
}

// resourceFlags are shared by add and update
type resourceFlags struct {
	title       string
	typ         string
	category    string
	description string
	estimated   int
}

func (f *resourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "resource title")
	cmd.Flags().StringVar(&f.typ, "type", string(domain.TypeArticle), "Article, Video, Quiz, Book or Course")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category name or id")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "description")
	cmd.Flags().IntVarP(&f.estimated, "estimated", "e", 0, "estimated time in minutes")
}

func addCmd() *cobra.Command {
	var flags resourceFlags
	var pageURL string
	var newCategory bool

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a new resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if len(args) > 0 && flags.title == "" {
				if fetcher.IsURL(args[0]) && pageURL == "" {
					pageURL = args[0]
				} else {
					flags.title = args[0]
				}
			}

			if pageURL != "" {
				page, err := fetcher.Fetch(ctx, pageURL)
				if err != nil {
					fmt.Printf("(could not read page: %v)\n", err)
				} else {
					if flags.title == "" {
						flags.title = page.Title
					}
					if flags.description == "" {
						flags.description = page.Description
					}
				}
				if flags.description == "" {
					flags.description = pageURL
				}
			}

			typ, err := domain.ParseResourceType(flags.typ)
			if err != nil {
				return err
			}
			if flags.category == "" {
				return fmt.Errorf("please select a category (--category)")
			}

			editor := a.views.Editor()
			cat, err := editor.ResolveCategory(ctx, flags.category)
			if err != nil {
				if !newCategory {
					return fmt.Errorf("%w (pass --new-category to create it)", err)
				}
				if cat, err = editor.CreateCategory(ctx, flags.category); err != nil {
					return err
				}
			}

			r, err := editor.CreateResource(ctx, domain.ResourceInput{
				Title:         flags.title,
				Type:          typ,
				Category:      cat.ID,
				Description:   flags.description,
				EstimatedTime: flags.estimated,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Added resource: %s\n", r.ID[:min(8, len(r.ID))])
			fmt.Printf("Title: %s\n", views.Truncate(r.Title, 80))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&pageURL, "url", "", "prefill title and description from a web page")
	cmd.Flags().BoolVar(&newCategory, "new-category", false, "create the category if it does not exist")
	return cmd
}

func updateCmd() *cobra.Command {
	var flags resourceFlags

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Edit a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			id, err := a.resolveID(ctx, args[0])
			if err != nil {
				return err
			}
			current, err := a.api.GetResource(ctx, id)
			if err != nil {
				return err
			}

			in := domain.ResourceInput{
				Title:         current.Title,
				Type:          current.Type,
				Description:   current.Description,
				EstimatedTime: current.EstimatedTime,
			}
			if current.Category != nil {
				in.Category = current.Category.ID
			}

			changed := cmd.Flags().Changed
			if changed("title") {
				in.Title = flags.title
			}
			if changed("type") {
				if in.Type, err = domain.ParseResourceType(flags.typ); err != nil {
					return err
				}
			}
			if changed("category") {
				cat, err := a.views.Editor().ResolveCategory(ctx, flags.category)
				if err != nil {
					return err
				}
				in.Category = cat.ID
			}
			if changed("description") {
				in.Description = flags.description
			}
			if changed("estimated") {
				in.EstimatedTime = flags.estimated
			}

			r, err := a.views.Editor().UpdateResource(ctx, id, in)
			if err != nil {
				return err
			}
			details := a.views.Details(r.ID)
			if err := details.Load(ctx); err != nil {
				return err
			}
			return details.Render(os.Stdout)
		},
	}

	flags.register(cmd)
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.resolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.views.Editor().DeleteResource(cmd.Context(), id)
		},
	}
}

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			cats, err := a.views.Editor().Categories(cmd.Context())
			if err != nil {
				return err
			}

			if len(cats) == 0 {
				fmt.Println("No categories yet. Use 'learnlog categories add <name>' to create one.")
				return nil
			}
			for _, c := range cats {
				fmt.Printf("%s  %s\n", c.ID[:min(8, len(c.ID))], c.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.views.Editor().CreateCategory(cmd.Context(), args[0])
			return err
		},
	})
	return cmd
}
