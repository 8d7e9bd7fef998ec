package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataontap/DeviceInsights-sub000/internal/service"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

func newDenyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deny",
		Short: "Manage the deny list",
		Long:  "Add, remove, and list blocked device identifiers. Entries without a credential apply to every caller.",
	}

	cmd.AddCommand(newDenyAddCmd())
	cmd.AddCommand(newDenyRemoveCmd())
	cmd.AddCommand(newDenyListCmd())

	return cmd
}

// ---------- deny add ----------

func newDenyAddCmd() *cobra.Command {
	var (
		reason       string
		credentialID int64
	)

	cmd := &cobra.Command{
		Use:   "add <target-id>",
		Short: "Block a device identifier",
		Example: `  deviceinsights deny add 356938035643809 --reason "reported stolen"
  deviceinsights deny add 490154203237518 --credential 3 --reason "customer opt-out"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDenyAdd(args[0], reason, credentialID)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to blocked callers")
	cmd.Flags().Int64Var(&credentialID, "credential", 0, "Scope the block to one credential (0 = global)")

	return cmd
}

func runDenyAdd(targetID, reason string, credentialID int64) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var scope *int64
	if credentialID != 0 {
		scope = &credentialID
	}

	deny := service.NewDenyList(st)
	entry, err := deny.Add(context.Background(), targetID, reason, scope)
	if err != nil {
		if errors.Is(err, service.ErrDenyConflict) {
			fmt.Printf("%q is already blocked\n", targetID)
			return nil
		}
		return fmt.Errorf("add deny entry: %w", err)
	}

	fmt.Printf("Blocked %q (%s scope)\n", entry.TargetID, entry.Scope())
	return nil
}

// ---------- deny remove ----------

func newDenyRemoveCmd() *cobra.Command {
	var credentialID int64

	cmd := &cobra.Command{
		Use:     "remove <target-id>",
		Aliases: []string{"rm"},
		Short:   "Unblock a device identifier",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDenyRemove(args[0], credentialID)
		},
	}

	cmd.Flags().Int64Var(&credentialID, "credential", 0, "Remove a credential-scoped block (0 = global)")

	return cmd
}

func runDenyRemove(targetID string, credentialID int64) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var scope *int64
	if credentialID != 0 {
		scope = &credentialID
	}

	deny := service.NewDenyList(st)
	if err := deny.Remove(context.Background(), targetID, scope); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("%q is not blocked\n", targetID)
			return nil
		}
		return fmt.Errorf("remove deny entry: %w", err)
	}

	fmt.Printf("Unblocked %q\n", targetID)
	return nil
}

// ---------- deny list ----------

func newDenyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active deny entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDenyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDenyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	deny := service.NewDenyList(st)
	entries, err := deny.List(context.Background())
	if err != nil {
		return fmt.Errorf("list deny entries: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("Deny list is empty.")
		return nil
	}

	fmt.Printf("%-20s %-8s %-12s %-32s\n", "TARGET", "SCOPE", "CREDENTIAL", "REASON")
	fmt.Printf("%-20s %-8s %-12s %-32s\n", "------", "-----", "----------", "------")
	for _, e := range entries {
		credCol := "-"
		if e.CredentialID != nil {
			credCol = fmt.Sprintf("%d", *e.CredentialID)
		}
		fmt.Printf("%-20s %-8s %-12s %-32s\n", e.TargetID, e.Scope(), credCol, e.Reason)
	}

	return nil
}
