package main

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/database"
	"attendance/internal/i18n"
	"attendance/internal/logger"
	"attendance/internal/middleware"
	"attendance/internal/service"
	"attendance/pkg/pagination"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg *config.Config

	email      string
	firstName  string
	lastName   string
	patronymic string
	position   string
	tokenTTL   time.Duration
	page       int
	limit      int

	rootCmd = &cobra.Command{
		Use:   "attendancectl",
		Short: "Maintenance commands for the attendance bot",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			if err := logger.Init(logger.Options{Env: cfg.Env, Level: cfg.LogLevel}); err != nil {
				return err
			}
			return i18n.Init(cfg.Locale)
		},
		SilenceUsage: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  runMigrate,
	}

	superuserCmd = &cobra.Command{
		Use:   "create-superuser",
		Short: "Create the superuser (or promote an existing employee) and print an invite code",
		RunE:  runCreateSuperuser,
	}

	inviteCmd = &cobra.Command{
		Use:   "issue-invite",
		Short: "Issue a fresh invite code for an employee",
		RunE:  runIssueInvite,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the admin REST API",
		RunE:  runToken,
	}

	pendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "List pending requests, oldest first",
		RunE:  runPending,
	}
)

func init() {
	superuserCmd.Flags().StringVar(&email, "email", "", "superuser email")
	superuserCmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	superuserCmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	superuserCmd.Flags().StringVar(&patronymic, "patronymic", "", "patronymic (optional)")
	superuserCmd.Flags().StringVar(&position, "position", "", "position (optional)")
	_ = superuserCmd.MarkFlagRequired("email")
	_ = superuserCmd.MarkFlagRequired("first-name")
	_ = superuserCmd.MarkFlagRequired("last-name")

	inviteCmd.Flags().StringVar(&email, "email", "", "employee email")
	_ = inviteCmd.MarkFlagRequired("email")

	tokenCmd.Flags().StringVar(&email, "email", "", "employee email")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("email")

	pendingCmd.Flags().IntVar(&page, "page", pagination.DefaultPage, "page number")
	pendingCmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "requests per page")

	rootCmd.AddCommand(migrateCmd, superuserCmd, inviteCmd, tokenCmd, pendingCmd)
}

func openDB() (*gorm.DB, error) {
	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

func build(ctx context.Context) (*app.App, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, db, nil)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if _, err := openDB(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runCreateSuperuser(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	employee, token, err := a.Employees.EnsureSuperuser(ctx, service.CreateEmployeeInput{
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
		Patronymic: patronymic,
		Position:   position,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "superuser %s <%s> id=%s\n", employee.FullName(), employee.Email, employee.ID)
	switch {
	case token != nil:
		fmt.Fprintf(out, "invite code: %s (expires %s)\n", token.Code, token.ExpiresAt.Format(time.RFC3339))
	case employee.HasChatIdentity():
		fmt.Fprintln(out, "chat account already bound, no invite issued")
	}
	return nil
}

func runIssueInvite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	employee, err := a.Employees.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := a.Invites.Issue(ctx, employee.ID, nil, cfg.InviteTTL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "invite code for %s: %s (expires %s)\n",
		employee.FullName(), token.Code, token.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	employee, err := a.Employees.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}
	token, err := middleware.IssueToken([]byte(cfg.JWTSecret), employee, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p := pagination.New(page, limit)
	total, err := a.Workflow.CountPending(ctx)
	if err != nil {
		return err
	}
	requests, err := a.Workflow.ListPending(ctx, p.Offset, p.Limit)
	if err != nil {
		return err
	}

	loc := cfg.Location()
	out := cmd.OutOrStdout()
	for i := range requests {
		r := &requests[i]
		owner := ""
		if r.Employee != nil {
			owner = r.Employee.FullName()
		}
		fmt.Fprintf(out, "%s  %-16s %-28s %s\n", r.ID, r.Type, service.FormatPeriod(ctx, r, loc), owner)
	}
	fmt.Fprintf(out, "page %d of %d, %d pending\n", p.Page, p.TotalPages(total), total)
	return nil
}
