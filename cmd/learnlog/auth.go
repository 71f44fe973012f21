package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pbaille/learnlog/internal/client"
	"github.com/spf13/cobra"
)

// promptLine reads one line from stdin when a flag was left empty
func promptLine(label string) (string, error) {
	fmt.Print(label + ": ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func credentials(email, password *string) error {
	var err error
	if *email == "" {
		if *email, err = promptLine("Email"); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = promptLine("Password"); err != nil {
			return err
		}
	}
	return nil
}

func signupCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := credentials(&email, &password); err != nil {
				return err
			}

			res, err := a.api.Signup(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			if res, err = a.signIn(cmd.Context(), res); err != nil || res == nil {
				return err
			}

			fmt.Printf("Welcome, %s!\n", displayName(res.User.Name, res.User.Email))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := credentials(&email, &password); err != nil {
				return err
			}

			res, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if res, err = a.signIn(cmd.Context(), res); err != nil || res == nil {
				return err
			}

			fmt.Printf("Signed in as %s\n", res.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

// signIn stores a token-bearing result. When the server asked for email
// verification it remembers the pending user and prompts for the code; a
// nil result means the user chose to verify later.
func (a *app) signIn(ctx context.Context, res *client.AuthResult) (*client.AuthResult, error) {
	if !res.NeedsVerification() {
		return res, a.remember(res)
	}

	a.session.Set("", res.User)
	if err := a.session.Save(); err != nil {
		return nil, err
	}
	fmt.Printf("We've sent a 6-digit code to %s\n", maskEmail(res.User.Email))

	code, err := promptLine("OTP (leave empty to verify later)")
	if err != nil {
		return nil, err
	}
	if code == "" {
		fmt.Println("Run 'learnlog verify <code>' once you have it.")
		return nil, nil
	}
	return a.verify(ctx, res.User.ID, code)
}

func (a *app) verify(ctx context.Context, userID, code string) (*client.AuthResult, error) {
	res, err := a.api.VerifyOTP(ctx, userID, code)
	if errors.Is(err, client.ErrInvalidOTP) {
		return nil, fmt.Errorf("%w (check the code or run 'learnlog verify --resend')", err)
	}
	if err != nil {
		return nil, err
	}
	fmt.Println("OTP verified successfully!")
	return res, a.remember(res)
}

func (a *app) remember(res *client.AuthResult) error {
	a.session.Set(res.Token, res.User)
	return a.session.Save()
}

func verifyCmd() *cobra.Command {
	var resend bool

	cmd := &cobra.Command{
		Use:   "verify [code]",
		Short: "Confirm your email with the emailed code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			user := a.session.User()
			if a.session.LoggedIn() || user == nil {
				return errors.New("no pending verification (run 'learnlog signup' or 'learnlog login')")
			}

			ctx := cmd.Context()
			if resend {
				if err := a.api.GenerateOTP(ctx, user.ID); err != nil {
					return err
				}
				fmt.Printf("OTP sent to %s\n", maskEmail(user.Email))
			}

			var code string
			if len(args) > 0 {
				code = args[0]
			} else if code, err = promptLine("OTP"); err != nil {
				return err
			}
			if code == "" {
				return nil
			}

			res, err := a.verify(ctx, user.ID, code)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", res.User.Email)
			return nil
		},
	}

	cmd.Flags().BoolVar(&resend, "resend", false, "email a new code first")
	return cmd
}

// maskEmail hides all but the first and last character of the local part
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	runes := []rune(local)
	if !ok || len(runes) <= 2 {
		return email
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1]) + "@" + domain
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			if a.session.LoggedIn() {
				// the local session is cleared even if the server is unreachable
				if err := a.api.Logout(cmd.Context()); err != nil {
					fmt.Printf("(server logout failed: %s)\n", describe(err))
				}
			}
			if err := a.session.Clear(); err != nil {
				return err
			}

			fmt.Println("Signed out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.api.Me(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%s <%s>\n", displayName(user.Name, user.Email), user.Email)
			return nil
		},
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
