package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func (c *CLI) loginCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "login [email-or-username]",
		Short: "Sign in with email or username and password",
		Long: `Sign in to the API. The password is read without echo from the terminal,
or as one line from stdin with --password-stdin.

If the account has two-factor authentication, the login stops at the
verification step: finish it with "portfolioctl verify-2fa CODE".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier := ""
			if len(args) == 1 {
				identifier = args[0]
			}
			return c.run(cmd, func(ctx context.Context, con *console) error {
				return con.login(ctx, identifier, force)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "sign in even if a session exists")
	cmd.Flags().BoolVar(&c.passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (c *CLI) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-2fa CODE",
		Short: "Complete a pending two-factor login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, con *console) error {
				return con.verify(ctx, args[0])
			})
		},
	}
}

func (c *CLI) requestCodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "request-code",
		Short: "Email a new verification code for the pending login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, con *console) error {
				return con.requestCode(ctx)
			})
		},
	}
}

func (c *CLI) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, con *console) error {
				con.logout()
				return nil
			})
		},
	}
}

func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(_ context.Context, con *console) error {
				con.status()
				return nil
			})
		},
	}
}

func (c *CLI) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the access token now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, con *console) error {
				return con.refresh(ctx)
			})
		},
	}
}

func (c *CLI) securityCommand() *cobra.Command {
	security := &cobra.Command{
		Use:   "security",
		Short: "Manage two-factor authentication and password",
	}

	totp := &cobra.Command{
		Use:   "totp",
		Short: "Authenticator app (TOTP) two-factor",
	}
	totp.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start authenticator setup and print the secret and backup codes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd, func(ctx context.Context, con *console) error {
					return con.totpEnable(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "verify CODE",
			Short: "Finish authenticator setup with a code from the app",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, con *console) error {
					return con.totpVerify(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Turn off authenticator two-factor",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd, func(ctx context.Context, con *console) error {
					return con.totpDisable(ctx)
				})
			},
		},
	)

	email := &cobra.Command{
		Use:   "email",
		Short: "Email two-factor",
	}
	email.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Turn on email two-factor",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd, func(ctx context.Context, con *console) error {
					return con.email2FA(ctx, true)
				})
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Turn off email two-factor",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.run(cmd, func(ctx context.Context, con *console) error {
					return con.email2FA(ctx, false)
				})
			},
		},
	)

	password := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, con *console) error {
				return con.changePassword(ctx)
			})
		},
	}
	password.Flags().BoolVar(&c.passwordStdin, "password-stdin", false, "read passwords from stdin, one per line")

	security.AddCommand(totp, email, password)
	return security
}
