package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/guard"
	"github.com/laundrypro/portal/internal/core/ports"
)

func loginCmd(get func() *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			pw, err := secret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			user, err := a.auth.Login(cmd.Context(), strings.TrimSpace(email), pw)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s). Home: %s\n", user.Email, user.Role, user.Role.HomePath())
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password; read from stdin when omitted")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			a.auth.Bootstrap(cmd.Context())
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd(get func() *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			state := a.auth.Bootstrap(cmd.Context())
			if !state.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			user := state.User
			if refresh {
				u, err := a.auth.RefreshProfile(cmd.Context())
				if err != nil {
					return explain(err)
				}
				user = u
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-read the profile from the backend")
	return cmd
}

func navCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nav <path>",
		Short: "Show what the portal does with a navigation to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			state := a.auth.Bootstrap(cmd.Context())

			chain := guard.ForPath(path)
			if chain == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: render (public)\n", path)
				return nil
			}
			d := chain.Evaluate(state, path)
			switch d.Action {
			case guard.Redirect:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: redirect to %s (%s guard)\n", path, d.Location, d.Guard)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, d.Action)
			}
			return nil
		},
	}
}

func registerCmd(get func() *app) *cobra.Command {
	var (
		in     ports.RegisterInput
		role   string
		fields map[string]string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			pw, err := secret(cmd, in.Password, "Password: ")
			if err != nil {
				return err
			}
			in.Password = pw
			if in.ConfirmPassword == "" {
				in.ConfirmPassword = pw
			}
			in.Email = strings.TrimSpace(in.Email)
			in.Role = domain.ParseRole(role)
			if len(fields) > 0 {
				in.Extra = make(map[string]any, len(fields))
				for k, v := range fields {
					in.Extra[k] = v
				}
			}

			user, err := a.auth.Register(cmd.Context(), in)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s). Home: %s\n", user.Email, user.Role, user.Role.HomePath())
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Full name")
	cmd.Flags().StringVarP(&in.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "Password; read from stdin when omitted")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm", "", "Password confirmation; defaults to the password")
	cmd.Flags().StringVar(&role, "role", "customer", "Role: customer, supplier, employee, manager or admin")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "Role-specific field as key=value; repeatable")
	return cmd
}

func setupAdminCmd(get func() *app) *cobra.Command {
	var in ports.AdminSetupInput

	cmd := &cobra.Command{
		Use:   "setup-admin",
		Short: "Create the single admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			exists, err := a.auth.AdminExists(cmd.Context())
			if err == nil && exists {
				return errors.New("an admin account already exists; sign in with `login` instead")
			}

			pw, err := secret(cmd, in.Password, "Password: ")
			if err != nil {
				return err
			}
			in.Password = pw
			if in.ConfirmPassword == "" {
				in.ConfirmPassword = pw
			}
			in.Email = strings.TrimSpace(in.Email)

			user, err := a.auth.SetupAdmin(cmd.Context(), in)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created. Home: %s\n", user.Email, user.Role.HomePath())
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Full name")
	cmd.Flags().StringVarP(&in.Email, "email", "e", "", "Admin email")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "Password; read from stdin when omitted")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm", "", "Password confirmation; defaults to the password")
	cmd.Flags().StringVar(&in.SecretKey, "secret", "", "Admin setup key issued by the backend operator")
	return cmd
}

func forgotPasswordCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Ask the backend to mail a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().auth.ForgotPassword(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the address is registered, a reset link is on its way.")
			return nil
		},
	}
}

func resetPasswordCmd(get func() *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-password <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			token := args[0]
			if err := a.auth.VerifyResetToken(cmd.Context(), token); err != nil {
				return explain(err)
			}
			pw, err := secret(cmd, password, "New password: ")
			if err != nil {
				return err
			}
			if err := a.auth.ResetPassword(cmd.Context(), token, pw); err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Sign in with `login`.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "New password; read from stdin when omitted")
	return cmd
}

// secret returns value, or reads one line from the command's input.
func secret(cmd *cobra.Command, value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// explain turns a classified error into the message shown on the form, with
// field messages listed underneath.
func explain(err error) error {
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		return err
	}
	var b strings.Builder
	b.WriteString(apiErr.UserMessage())
	keys := make([]string, 0, len(apiErr.Fields))
	for k := range apiErr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, apiErr.Fields[k])
	}
	return errors.New(b.String())
}
