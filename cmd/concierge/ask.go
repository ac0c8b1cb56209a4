package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/planhub/concierge/internal/assistant"
	"github.com/planhub/concierge/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func newAskCmd() *cobra.Command {
	var (
		configPath string
		userID     uint
		auditLimit int
	)

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Ask the assistant from the command line",
		Long: `Runs a query through the assistant without the HTTP API.

With a query argument, answers it and exits. Without one, and when stdin
is a terminal, starts an interactive session that keeps conversation
context between questions.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			user, err := loadUser(a.db, userID)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("audit") {
				return printAuditTrail(cmd.OutOrStdout(), a, user, auditLimit)
			}
			if len(args) > 0 {
				return askOnce(cmd.Context(), cmd.OutOrStdout(), a, user, strings.Join(args, " "))
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("ask: no query given and stdin is not a terminal")
			}
			return askInteractive(cmd.Context(), cmd.OutOrStdout(), a, user)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	cmd.Flags().UintVar(&userID, "user", 0, "user ID to ask as (required)")
	cmd.Flags().IntVar(&auditLimit, "audit", 20, "list the client's recent audit entries instead of asking")
	cmd.MarkFlagRequired("user")

	return cmd
}

func loadUser(gormDB *gorm.DB, id uint) (models.User, error) {
	var user models.User
	err := gormDB.Where("id = ? AND is_deleted = ?", id, false).First(&user).Error
	if err != nil {
		return models.User{}, fmt.Errorf("ask: load user %d: %w", id, err)
	}
	return user, nil
}

func askOnce(ctx context.Context, out io.Writer, a *app, user models.User, text string) error {
	resp := a.assistant.ProcessQuery(ctx, assistant.Query{User: user, Text: text})
	printResponse(out, resp)
	return nil
}

func askInteractive(ctx context.Context, out io.Writer, a *app, user models.User) error {
	fmt.Fprintf(out, "Asking as %s. Type a question, or \"quit\" to leave.\n", user.Name)

	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		resp := a.assistant.ProcessQuery(ctx, assistant.Query{
			User:      user,
			Text:      text,
			SessionID: sessionID,
		})
		sessionID = resp.Meta.SessionID
		printResponse(out, resp)
	}
	return scanner.Err()
}

func printAuditTrail(out io.Writer, a *app, user models.User, limit int) error {
	entries, err := a.retriever.AuditTrail(user, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit entries.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tINTENT\tCONF\tACTION\tRESULT\tQUERY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.IntentType, e.Confidence,
			e.ActionType, e.ActionResult, e.Query)
	}
	return w.Flush()
}

func printResponse(out io.Writer, resp *assistant.Response) {
	fmt.Fprintln(out, resp.Message)
	for _, a := range resp.Actions {
		fmt.Fprintf(out, "  %s: %s\n", a.Label, a.Value)
	}
}
