package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	bookentity "github.com/ovaphlow/pitchfork/service-library-go/internal/book/entity"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Account maintenance"}

	cmd.AddCommand(&cobra.Command{
		Use:   "promote <user-id>",
		Short: "Grant the LIBRARIAN role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := a.users.PromoteToLibrarian(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status <user-id> <ACTIVE|INACTIVE|SUSPENDED|BLOCKED>",
		Short: "Change an account status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			u, err := a.users.ChangeStatus(cmd.Context(), id, entity.Status(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "passwd <user-id>",
		Short: "Set a new password, read from the terminal without echo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd, "New password: ")
			if err != nil {
				return err
			}
			again, err := readPassword(cmd, "Repeat password: ")
			if err != nil {
				return err
			}
			if pw != again {
				return errors.New("passwords do not match")
			}
			if err := a.users.SetPassword(cmd.Context(), id, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated")
			return nil
		},
	})
	return cmd
}

func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("passwd needs an interactive terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Catalog maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <book-id> <AVAILABLE|UNDER_REPAIR|LOST|RETIRED>",
		Short: "Move a book that is not on loan to another catalog status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := a.books.ChangeStatus(cmd.Context(), id, bookentity.Status(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			return printJSON(cmd, b)
		},
	})
	return cmd
}
