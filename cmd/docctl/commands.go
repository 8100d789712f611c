package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sme-docengine/internal/auth"
	"sme-docengine/internal/database"
	"sme-docengine/internal/engine"
	"sme-docengine/internal/logger"
	"sme-docengine/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		return database.Migrate(db)
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user <username>",
	Short: "Add a user to a tenant",
	Example: `  # Bootstrap the first approver of company 1
  docctl create-user alice --role manager --password 's3cret' --tenant 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFlag(cmd)
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		_, db, err := openDB()
		if err != nil {
			return err
		}
		user, err := auth.Register(cmd.Context(), db, tenant, args[0], password, role)
		if err != nil {
			return err
		}

		log := logger.WithComponent("docctl")
		log.Info().
			Uint("tenant_id", tenant).
			Uint("user_id", user.ID).
			Str("role", role).
			Msg("User created")
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s) for tenant %d\n", user.ID, user.Username, user.Role, tenant)
		return nil
	},
}

var devTokenCmd = &cobra.Command{
	Use:   "dev-token",
	Short: "Print a signed bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFlag(cmd)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetUint("user")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if !auth.ValidRole(role) {
			return fmt.Errorf("%w: %q", auth.ErrInvalidRole, role)
		}

		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("JWT_SECRET environment variable is required")
		}
		token, err := auth.NewSigner(secret, ttl).GenerateToken(userID, tenant, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var nextNumberCmd = &cobra.Command{
	Use:       "next-number <quote|purchase-order|invoice>",
	Short:     "Preview the number the next document of a kind would get",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"quote", "purchase-order", "invoice"},
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFlag(cmd)
		if err != nil {
			return err
		}
		kind := models.Kind(strings.ToUpper(strings.ReplaceAll(args[0], "-", "_")))
		if !kind.Valid() {
			return fmt.Errorf("unknown document kind %q", args[0])
		}

		_, db, err := openDB()
		if err != nil {
			return err
		}
		number, err := engine.New(db).NextNumber(cmd.Context(), tenant, kind)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), number)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count documents and total them per kind and status",
	Example: `  # Current month
  docctl summary --tenant 1

  # A quarter
  docctl summary --tenant 1 --from 2026-07-01 --to 2026-09-30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFlag(cmd)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, -1)
		if s, _ := cmd.Flags().GetString("from"); s != "" {
			if from, err = time.Parse("2006-01-02", s); err != nil {
				return fmt.Errorf("invalid --from date format. Use YYYY-MM-DD: %w", err)
			}
		}
		if s, _ := cmd.Flags().GetString("to"); s != "" {
			if to, err = time.Parse("2006-01-02", s); err != nil {
				return fmt.Errorf("invalid --to date format. Use YYYY-MM-DD: %w", err)
			}
		}

		_, db, err := openDB()
		if err != nil {
			return err
		}
		rows, err := engine.New(db).Summary(cmd.Context(), tenant, from, to)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tSTATUS\tCOUNT\tGRAND TOTAL")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Kind, r.Status, r.Count, r.GrandTotal.StringFixed(2))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, createUserCmd, devTokenCmd, nextNumberCmd, summaryCmd)

	createUserCmd.Flags().String("role", auth.RoleStaff, "admin, manager or staff")
	createUserCmd.Flags().String("password", "", "Initial password")

	devTokenCmd.Flags().Uint("user", 1, "User id placed in the token")
	devTokenCmd.Flags().String("role", auth.RoleAdmin, "admin, manager or staff")
	devTokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	summaryCmd.Flags().String("from", "", "First issue date (YYYY-MM-DD, default: first of this month)")
	summaryCmd.Flags().String("to", "", "Last issue date (YYYY-MM-DD, default: end of this month)")
}
