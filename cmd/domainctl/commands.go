package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-domain-mapper/internal/app"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/repo"
	"github.com/tbourn/go-domain-mapper/internal/services"
	"github.com/tbourn/go-domain-mapper/internal/utils"
)

func (c *cli) autocfCmd() *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "autocf [domain]",
		Short: "Create the Cloudflare custom hostname and wait for its validation records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Onboarding == nil {
					return emitResult(cmd, domain.Result{Domain: d}, fmt.Errorf("cloudflare: %w", services.ErrRegistrarDisabled))
				}
				started, err := a.Onboarding.Start(ctx, d)
				if err != nil {
					return emitResult(cmd, domain.Result{Domain: d}, err)
				}
				if err := emit(cmd, started.Envelope); err != nil {
					return err
				}
				if noWait || started.Task == nil {
					return nil
				}

				select {
				case <-started.Task.Done():
				case <-ctx.Done():
					return ctx.Err()
				}
				res := started.Task.Result()
				if err := emit(cmd, res); err != nil {
					return err
				}
				if res.Outcome != services.OutcomePersisted {
					return errReported
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return after creating the hostname without polling")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [domain]",
		Short: "Report verification and SSL progress of a custom hostname",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Onboarding == nil {
					return emitResult(cmd, domain.Result{Domain: d}, fmt.Errorf("cloudflare: %w", services.ErrRegistrarDisabled))
				}
				res, err := a.Onboarding.Status(ctx, d)
				return emitResult(cmd, res, err)
			})
		},
	}
}

func (c *cli) deleteCFCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-cf [domain]",
		Short: "Delete the custom hostnames for both www variants of a domain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Onboarding == nil {
					return emitResult(cmd, domain.Result{Domain: d}, fmt.Errorf("cloudflare: %w", services.ErrRegistrarDisabled))
				}
				res, err := a.Onboarding.Delete(ctx, d)
				return emitResult(cmd, res, err)
			})
		},
	}
}

func (c *cli) albCmd() *cobra.Command {
	var waitSSL bool
	cmd := &cobra.Command{
		Use:   "alb [domain]",
		Short: "Add a domain to the load balancer host-header rule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Registrars.AddALBHost(ctx, d, waitSSL)
				return emitResult(cmd, res, err)
			})
		},
	}
	cmd.Flags().BoolVar(&waitSSL, "wait-ssl", false, "verify the CNAME and wait for SSL before updating the rule")

	cmd.AddCommand(&cobra.Command{
		Use:   "next-priority",
		Short: "Print the next free rule priority on the listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.ALB == nil {
					return emitResult(cmd, domain.Result{}, fmt.Errorf("alb: %w", services.ErrRegistrarDisabled))
				}
				p, err := a.ALB.NextPriority(ctx)
				if err != nil {
					return emitResult(cmd, domain.Result{}, err)
				}
				return emit(cmd, map[string]int{"next_priority": p})
			})
		},
	})
	return cmd
}

func (c *cli) auth0Cmd() *cobra.Command {
	var (
		clientID string
		origins  []string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "auth0 <action> [domain|url]",
		Short: "Manage the Auth0 application's callback, logout and origin URLs",
		Long: "Actions: add, remove, list, canonicalize, populate, add-all, remove-all, set-origins.\n" +
			"add-all and remove-all take a full base URL; set-origins takes --origins.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.Auth0Request{
				Action:   args[0],
				ClientID: clientID,
				Origins:  utils.SplitList(origins...),
				DryRun:   dryRun,
			}
			switch req.Action {
			case services.Auth0Add, services.Auth0Remove, services.Auth0AddAll, services.Auth0RemoveAll:
				d, err := c.arg(cmd, args, 1, "domain")
				if err != nil {
					return err
				}
				req.Domain = d
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Registrars.Auth0Action(ctx, req)
				return emitResult(cmd, res, err)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "application client id (default AUTH0_APP_CLIENT_ID)")
	cmd.Flags().StringSliceVar(&origins, "origins", nil, "web origins for set-origins")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the change without saving it")
	return cmd
}

func (c *cli) nginxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nginx [domain]",
		Short: "Add a domain to the nginx server_name and reload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Registrars.AddNginxDomain(ctx, d)
				return emitResult(cmd, res, err)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "agent-site [domain] [agent-id]",
		Short: "Write a server block routing the domain to an agent's site and reload",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			agentID, err := c.arg(cmd, args, 1, "agent id")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Registrars.WriteAgentSite(ctx, d, agentID)
				return emitResult(cmd, res, err)
			})
		},
	})
	return cmd
}

func (c *cli) corsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cors [domain]",
		Short: "Add https://<domain> to CORS_ORIGINS in the env files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Registrars.AddCORSOrigin(ctx, d)
				return emitResult(cmd, res, err)
			})
		},
	}
}

func (c *cli) dbkpCmd() *cobra.Command {
	var (
		replace   bool
		backupDir string
	)
	cmd := &cobra.Command{
		Use:   "dbkp [domain] [agent_id]",
		Short: "Map a domain to an agent in domain_agent_mapping",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			agentID, err := c.arg(cmd, args, 1, "agent id")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if backupDir != "" {
					path, err := repo.BackupMySQL(ctx, c.runner, a.Config.DB, backupDir, c.now())
					if err != nil {
						return emitResult(cmd, domain.Result{Domain: d}, err)
					}
					cmd.PrintErrln("backup written to", path)
				}
				res, err := a.Registrars.RegisterMapping(ctx, d, agentID, replace)
				return emitResult(cmd, res, err)
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "delete existing rows for the domain first")
	cmd.Flags().StringVar(&backupDir, "backup", "", "mysqldump the database into this directory first")
	return cmd
}

func (c *cli) validateDNSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-dns [domain]",
		Short: "Check the CNAME, ownership TXT and ACME TXT records of a domain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.arg(cmd, args, 0, "domain")
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Registrars.ValidateDNS(ctx, d)
				if err != nil {
					return emitResult(cmd, domain.Result{Domain: d}, err)
				}
				if err := emit(cmd, rep); err != nil {
					return err
				}
				if rep.Passed != rep.Total {
					return errReported
				}
				return nil
			})
		},
	}
}
