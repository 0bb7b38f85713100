package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mindmap-backend/internal/config"
	"mindmap-backend/internal/host"
	"mindmap-backend/internal/mindmap"
	"mindmap-backend/pkg/auth"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the SQLite tables of the schema catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Config.StoreDriver != config.StoreSQLite {
				return fmt.Errorf("migrate supports the sqlite store only, got %q", app.Config.StoreDriver)
			}
			// Opening the sqlite store creates missing tables.
			c, cleanup, err := app.Open(cmd.Context(), app.Config)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, t := range c.Catalog.Tables() {
				fmt.Fprintf(cmd.OutOrStdout(), "table %s ok\n", t.Name)
			}
			return nil
		},
	}
}

func newViewsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List configured views",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := app.Open(cmd.Context(), app.Config)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, name := range c.Views.Names() {
				v, err := c.Views.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", v.Name, v.Table)
			}
			return nil
		},
	}
}

func newTreeCmd(app *App) *cobra.Command {
	var state []string
	var asJSON bool
	var role int

	cmd := &cobra.Command{
		Use:   "tree VIEW",
		Short: "Print the node tree of a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseState(state)
			if err != nil {
				return err
			}
			c, cleanup, err := app.Open(cmd.Context(), app.Config)
			if err != nil {
				return err
			}
			defer cleanup()

			user := &host.User{ID: "mindmapctl", RoleID: role}
			data, err := c.Service.MindData(cmd.Context(), args[0], filters, user)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(data)
			}
			printTree(cmd.OutOrStdout(), data.NodeData, 0)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&state, "state", nil, "Filter state as field=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the client payload as JSON")
	cmd.Flags().IntVar(&role, "role", 1, "Role id to build the tree as")

	return cmd
}

func newTokenCmd(app *App) *cobra.Command {
	var userID, email string
	var role int
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := auth.NewJWTGenerator(auth.JWTConfig{
				SecretKey: app.Config.JWTSecret,
				Issuer:    app.Config.JWTIssuer,
			}, ttl)
			if err != nil {
				return fmt.Errorf("JWT_SECRET must be set: %w", err)
			}
			token, err := gen.GenerateToken(userID, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().IntVar(&role, "role", 0, "Role id (1 = admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func parseState(pairs []string) (map[string]string, error) {
	state := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid state %q, want field=value", p)
		}
		state[k] = v
	}
	return state, nil
}

func printTree(w io.Writer, n *mindmap.Node, depth int) {
	line := strings.Repeat("  ", depth) + n.Topic
	if len(n.Icons) > 0 {
		line += " " + strings.Join(n.Icons, " ")
	}
	if len(n.Tags) > 0 {
		line += " [" + strings.Join(n.Tags, "] [") + "]"
	}
	fmt.Fprintln(w, line)
	for _, c := range n.Children {
		printTree(w, c, depth+1)
	}
}
