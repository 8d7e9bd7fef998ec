package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataontap/DeviceInsights-sub000/internal/handler"
	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"credential"},
		Short:   "Manage API credentials",
		Long:    "Create, list, and revoke the API credentials used to authenticate lookup requests.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())
	cmd.AddCommand(newKeyTierCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		tier  string
		label string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API credential",
		Long:  "Generate a new API credential. The raw secret is shown once and cannot be retrieved again.",
		Example: `  deviceinsights key create --label "mobile app" --tier standard
  deviceinsights key create --tier premium`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(label, tier)
		},
	}

	cmd.Flags().StringVar(&tier, "tier", model.TierStandard, "Rate-limit tier (standard, elevated, premium)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the credential")

	return cmd
}

func runKeyCreate(label, tier string) error {
	switch tier {
	case model.TierStandard, model.TierElevated, model.TierPremium:
	default:
		return fmt.Errorf("unknown tier %q (want standard, elevated, or premium)", tier)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rawSecret, cred, err := handler.GenerateCredential(label, tier)
	if err != nil {
		return fmt.Errorf("generate credential: %w", err)
	}
	if err := st.CreateCredential(context.Background(), cred); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}

	fmt.Println("Credential created:")
	fmt.Println()
	fmt.Printf("  Secret: %s\n", rawSecret)
	fmt.Printf("  Tier:   %s\n", tier)
	if label != "" {
		fmt.Printf("  Label:  %s\n", label)
	}
	fmt.Println()
	fmt.Println("  Save this secret now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	creds, err := st.ListCredentials(context.Background())
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(creds)
	}

	if len(creds) == 0 {
		fmt.Println("No credentials configured. Use 'deviceinsights key create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-16s %-10s %-24s %-10s %-8s\n", "ID", "PREFIX", "TIER", "LABEL", "USES", "ACTIVE")
	fmt.Printf("%-6s %-16s %-10s %-24s %-10s %-8s\n", "--", "------", "----", "-----", "----", "------")
	for _, c := range creds {
		active := "yes"
		if !c.IsActive {
			active = "no"
		}
		fmt.Printf("%-6d %-16s %-10s %-24s %-10d %-8s\n", c.ID, c.KeyPrefix, c.Tier, c.Label, c.UseCount, active)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API credential by its prefix",
		Long:  "Deactivate a credential, rejecting any further requests that present it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	cred, err := findCredentialByPrefix(ctx, st, prefix)
	if err != nil {
		return err
	}

	if err := st.DeactivateCredential(ctx, cred.ID); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}

	fmt.Printf("Revoked credential with prefix %q\n", cred.KeyPrefix)
	return nil
}

// ---------- key tier ----------

func newKeyTierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier <prefix> <tier>",
		Short: "Change a credential's rate-limit tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyTier(args[0], args[1])
		},
	}

	return cmd
}

func runKeyTier(prefix, tier string) error {
	switch tier {
	case model.TierStandard, model.TierElevated, model.TierPremium:
	default:
		return fmt.Errorf("unknown tier %q (want standard, elevated, or premium)", tier)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	cred, err := findCredentialByPrefix(ctx, st, prefix)
	if err != nil {
		return err
	}

	if err := st.UpdateCredentialTier(ctx, cred.ID, tier); err != nil {
		return fmt.Errorf("update tier: %w", err)
	}

	fmt.Printf("Credential %q is now on the %s tier\n", cred.KeyPrefix, tier)
	return nil
}

// findCredentialByPrefix matches a credential by stored prefix. Partial
// prefixes are accepted as long as they identify a single credential.
func findCredentialByPrefix(ctx context.Context, st credentialLister, prefix string) (*model.Credential, error) {
	creds, err := st.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	var matched *model.Credential
	for i := range creds {
		if strings.HasPrefix(creds[i].KeyPrefix, prefix) {
			if matched != nil {
				return nil, fmt.Errorf("prefix %q is ambiguous", prefix)
			}
			matched = &creds[i]
		}
	}
	if matched == nil {
		return nil, fmt.Errorf("no credential found with prefix %q", prefix)
	}
	return matched, nil
}

type credentialLister interface {
	ListCredentials(ctx context.Context) ([]model.Credential, error)
}
