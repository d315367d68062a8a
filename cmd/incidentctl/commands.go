package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/spec-kit/incident-service/internal/app"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/observability"
)

func cmdToken() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token for a reporter or technician",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "reporter or technician id", Required: true},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "REPORTER or TECHNICIAN", Value: string(domain.SubjectTypeReporter)},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			subject, err := parseSubjectType(cmd.String("type"))
			if err != nil {
				return err
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			signed, meta, err := tokens.Issue(cmd.String("subject"), subject, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "%s\n# expires %s\n", signed, meta.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}

func cmdMigrate() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withContainer(ctx, func(cfg *config.Config) {
				cfg.Postgres.RunMigrations = true
			}, func(c *app.Container) error {
				if !c.Postgres.Enabled() {
					return errors.New("POSTGRES_DSN is required")
				}
				fmt.Fprintln(cmd.Root().Writer, "migrations applied")
				return nil
			})
		},
	}
}

func cmdTechnician() *cli.Command {
	return &cli.Command{
		Name:  "technician",
		Usage: "Manage the technician directory",
		Commands: []*cli.Command{{
			Name:  "add",
			Usage: "Register an active technician",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Required: true},
				&cli.StringFlag{Name: "email", Required: true},
				&cli.IntFlag{Name: "level", Usage: "support level 1..3", Value: 1},
				&cli.StringFlag{Name: "role", Usage: "SPOC or TECHNICIAN", Value: string(domain.TechnicianRoleTechnician)},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				level := domain.SupportLevel(cmd.Int("level"))
				if !level.Valid() {
					return fmt.Errorf("invalid level %d", level)
				}
				role := domain.TechnicianRole(strings.ToUpper(cmd.String("role")))
				if role != domain.TechnicianRoleSPOC && role != domain.TechnicianRoleTechnician {
					return fmt.Errorf("invalid role %q", role)
				}
				return withContainer(ctx, nil, func(c *app.Container) error {
					tech := &domain.Technician{
						Name:         cmd.String("name"),
						Email:        cmd.String("email"),
						SupportLevel: level,
						Role:         role,
						Active:       true,
						CreatedAt:    time.Now().UTC(),
					}
					if err := c.Repos.Technicians.Create(ctx, tech); err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, tech.ID)
					return nil
				})
			},
		}},
	}
}

func cmdObjective() *cli.Command {
	return &cli.Command{
		Name:  "objective",
		Usage: "Manage SLA objectives",
		Commands: []*cli.Command{{
			Name:  "set",
			Usage: "Create or replace the objective for a service and priority",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "service", Required: true},
				&cli.StringFlag{Name: "priority", Value: string(domain.DefaultPriority)},
				&cli.IntFlag{Name: "first-response", Usage: "minutes", Required: true},
				&cli.IntFlag{Name: "resolution", Usage: "minutes", Required: true},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				objective := &domain.SLAObjective{
					ServiceID:            cmd.String("service"),
					Priority:             domain.IncidentPriority(strings.ToUpper(cmd.String("priority"))),
					FirstResponseMinutes: int(cmd.Int("first-response")),
					ResolutionMinutes:    int(cmd.Int("resolution")),
				}
				if !objective.Priority.Valid() {
					return fmt.Errorf("invalid priority %q", objective.Priority)
				}
				if objective.FirstResponseMinutes <= 0 || objective.ResolutionMinutes <= 0 {
					return errors.New("windows must be positive")
				}
				return withContainer(ctx, nil, func(c *app.Container) error {
					return c.Objectives.Upsert(ctx, objective)
				})
			},
		}},
	}
}

func cmdSweep() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run one escalation sweep now",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withContainer(ctx, nil, func(c *app.Container) error {
				escalated, ran, err := c.Sweeper.RunOnce(ctx)
				if err != nil {
					return err
				}
				if !ran {
					fmt.Fprintln(cmd.Root().Writer, "another sweep is in progress")
					return nil
				}
				fmt.Fprintf(cmd.Root().Writer, "escalated %d incident(s)\n", escalated)
				return nil
			})
		},
	}
}

func withContainer(ctx context.Context, tweak func(*config.Config), fn func(*app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if tweak != nil {
		tweak(cfg)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	defer c.StartNotifications(ctx)()
	if !c.Postgres.Enabled() {
		logger.Warn("running against the in-memory store; changes are discarded on exit")
	}
	return fn(c)
}

func parseSubjectType(raw string) (domain.SubjectType, error) {
	switch t := domain.SubjectType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case domain.SubjectTypeReporter, domain.SubjectTypeTechnician:
		return t, nil
	default:
		return "", fmt.Errorf("invalid subject type %q", raw)
	}
}
