package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pbaille/learnlog/internal/completion"
	"github.com/pbaille/learnlog/internal/tui"
	"github.com/pbaille/learnlog/internal/views"
	"github.com/spf13/cobra"
)

func completeCmd() *cobra.Command {
	var minutes string

	cmd := &cobra.Command{
		Use:   "complete [id]",
		Short: "Mark a resource complete with the time actually spent",
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

			details := a.views.Details(id)
			if err := details.Load(ctx); err != nil {
				return err
			}
			if err := details.RequestCompletion(ctx); err != nil {
				if errors.Is(err, views.ErrAlreadyCompleted) {
					fmt.Println("Resource is already completed.")
					return nil
				}
				return err
			}

			coord := a.views.Coordinator()
			if cmd.Flags().Changed("minutes") {
				coord.SetInput(minutes)
				if err := coord.Submit(); err != nil {
					coord.Close()
					return fmt.Errorf("%s: %w", completion.ValidationMessage, err)
				}
			} else {
				if err := tui.Run(ctx, coord, details.Resource().Title, os.Stdin, os.Stdout); err != nil {
					return err
				}
				if coord.IsOpen() {
					coord.Close()
				}
			}

			// the mutation runs after the prompt has closed
			if err := a.views.Wait(); err != nil {
				return err
			}

			if err := details.Load(ctx); err != nil {
				return err
			}
			if details.Resource() != nil && details.Resource().IsCompleted {
				return details.Render(os.Stdout)
			}
			fmt.Println("Cancelled.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&minutes, "minutes", "m", "", "actual time spent in minutes (skips the prompt)")
	return cmd
}
