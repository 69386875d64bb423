package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/warden/internal/auth/app"
	"github.com/aussiebroadwan/warden/internal/auth/domain"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tenantContext(cmd *cobra.Command, key string) (context.Context, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("--tenant is required")
	}
	return tenant.WithKey(cmd.Context(), key), nil
}

func newPermissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Manage tenant permissions",
	}

	var tenantKey string
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the configured roles and permissions of a tenant into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := tenantContext(cmd, tenantKey)
			if err != nil {
				return err
			}
			return withApp(func(a *app.Application) error {
				if err := a.Permissions.MigrateToDatabase(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "permissions of %s migrated\n", tenant.Key(ctx))
				return nil
			})
		},
	}
	migrate.Flags().StringVar(&tenantKey, "tenant", "", "tenant key")

	cmd.AddCommand(migrate)
	return cmd
}

func newPrivilegesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "privileges",
		Short: "Maintain permissions against the privilege catalog",
	}

	var (
		appName    string
		privileges []string
	)
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Remove, in every tenant, permissions on privileges the app no longer declares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if appName == "" {
				return fmt.Errorf("--app is required")
			}
			return withApp(func(a *app.Application) error {
				report, err := a.Sweeper.Sweep(cmd.Context(), appName, privileges)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	sweep.Flags().StringVar(&appName, "app", "", "application name")
	sweep.Flags().StringSliceVar(&privileges, "privilege", nil, "privilege the app still declares (repeatable)")

	cmd.AddCommand(sweep)
	return cmd
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	var (
		tenantKey  string
		nu         service.NewUser
		email      string
		msisdn     string
		nickname   string
		tfaEnabled bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an activated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := tenantContext(cmd, tenantKey)
			if err != nil {
				return err
			}
			if nu.UserKey == "" || nu.Password == "" {
				return fmt.Errorf("--user-key and --password are required")
			}
			// The first login labels the TOTP secret
			for _, l := range []domain.Login{
				{TypeKey: domain.LoginEmail, Value: email},
				{TypeKey: domain.LoginMsisdn, Value: msisdn},
				{TypeKey: domain.LoginNickname, Value: nickname},
			} {
				if l.Value != "" {
					nu.Logins = append(nu.Logins, l)
				}
			}
			if len(nu.Logins) == 0 {
				return fmt.Errorf("at least one of --email, --msisdn or --nickname is required")
			}
			nu.TfaEnabled = tfaEnabled

			return withApp(func(a *app.Application) error {
				u, err := a.Users.CreateUser(ctx, nu)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"tenant":    u.TenantKey,
					"user_key":  u.UserKey,
					"role_keys": u.RoleKeys,
				})
			})
		},
	}
	f := create.Flags()
	f.StringVar(&tenantKey, "tenant", "", "tenant key")
	f.StringVar(&nu.UserKey, "user-key", "", "user key")
	f.StringVar(&nu.Password, "password", "", "initial password")
	f.StringSliceVar(&nu.RoleKeys, "role", nil, "role key (repeatable, tenant default when omitted)")
	f.StringVar(&email, "email", "", "email login")
	f.StringVar(&msisdn, "msisdn", "", "phone number login")
	f.StringVar(&nickname, "nickname", "", "nickname login")
	f.BoolVar(&tfaEnabled, "tfa", false, "require a one-time code at sign in")
	f.StringVar(&nu.TfaOtpChannel, "tfa-channel", "", "channel for one-time codes (email, sms)")

	cmd.AddCommand(create, newUsersTfaCmd())
	return cmd
}

func newUsersTfaCmd() *cobra.Command {
	var (
		tenantKey string
		userKey   string
		channel   string
		disable   bool
	)
	tfa := &cobra.Command{
		Use:   "tfa",
		Short: "Enroll a user in one-time codes at sign in, or turn them off",
		Long: "Enrolling generates a new TOTP secret and prints its otpauth:// URL once. " +
			"Enrolling an enrolled user rotates the secret.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := tenantContext(cmd, tenantKey)
			if err != nil {
				return err
			}
			if userKey == "" {
				return fmt.Errorf("--user-key is required")
			}

			return withApp(func(a *app.Application) error {
				if disable {
					if err := a.Users.DisableTfa(ctx, userKey); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "tfa disabled for %s\n", userKey)
					return nil
				}
				enrollment, err := a.Users.EnrollTfa(ctx, userKey, channel)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"tenant":      enrollment.User.TenantKey,
					"user_key":    enrollment.User.UserKey,
					"channel":     enrollment.User.TfaOtpChannel,
					"otpauth_url": enrollment.URL,
				})
			})
		},
	}
	f := tfa.Flags()
	f.StringVar(&tenantKey, "tenant", "", "tenant key")
	f.StringVar(&userKey, "user-key", "", "user key")
	f.StringVar(&channel, "channel", "", "channel for one-time codes (email, sms), current one when omitted")
	f.BoolVar(&disable, "disable", false, "turn one-time codes off and forget the secret")
	return tfa
}

func newClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage OAuth2 clients",
	}

	var (
		tenantKey string
		nc        service.NewClient
		access    int
		refresh   int
		tfa       int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a client; the secret of a confidential client is printed once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := tenantContext(cmd, tenantKey)
			if err != nil {
				return err
			}
			if nc.ClientID == "" {
				return fmt.Errorf("--client-id is required")
			}
			flags := cmd.Flags()
			if flags.Changed("access-validity") {
				nc.AccessTokenValiditySeconds = &access
			}
			if flags.Changed("refresh-validity") {
				nc.RefreshTokenValiditySeconds = &refresh
			}
			if flags.Changed("tfa-validity") {
				nc.TfaAccessTokenValiditySeconds = &tfa
			}

			return withApp(func(a *app.Application) error {
				c, secret, err := a.Clients.CreateClient(ctx, nc)
				if err != nil {
					return err
				}
				out := map[string]any{
					"tenant":      c.TenantKey,
					"client_id":   c.ClientID,
					"scopes":      c.Scopes,
					"grant_types": c.AuthorizedGrantTypes,
				}
				if secret != "" {
					out["client_secret"] = secret
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	f := create.Flags()
	f.StringVar(&tenantKey, "tenant", "", "tenant key")
	f.StringVar(&nc.ClientID, "client-id", "", "client id")
	f.BoolVar(&nc.Confidential, "confidential", true, "generate a client secret")
	f.StringSliceVar(&nc.Scopes, "scope", nil, "allowed scope (repeatable)")
	f.StringSliceVar(&nc.GrantTypes, "grant-type", []string{domain.GrantPassword, domain.GrantRefreshToken, domain.GrantTfaOtpToken}, "authorized grant type (repeatable)")
	f.IntVar(&access, "access-validity", 0, "access token validity in seconds, 0 or less never expires")
	f.IntVar(&refresh, "refresh-validity", 0, "refresh token validity in seconds, 0 or less never expires")
	f.IntVar(&tfa, "tfa-validity", 0, "pending token validity in seconds")

	cmd.AddCommand(create)
	return cmd
}
