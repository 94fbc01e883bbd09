// Command admin is the operator CLI for offline tasks that don't belong on
// the network-facing edge or engine processes: catalog seeding and
// receiving-wallet key generation. Built with cobra (teacher: cmd/synnergy)
// rather than the plain-main() texture of cmd/edge and cmd/engine, since
// those two are long-running servers and this is a one-shot tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"negotiation-engine/internal/catalog"
	"negotiation-engine/internal/walletkeys"
)

func main() {
	rootCmd := &cobra.Command{Use: "admin"}
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(walletCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog"}
	cmd.AddCommand(catalogSeedCmd())
	return cmd
}

func catalogSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "validate a catalog seed file and report whether it loads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("admin: read seed file: %w", err)
			}
			store := catalog.NewMemStore()
			if err := catalog.LoadYAML(store, data); err != nil {
				return fmt.Errorf("admin: load seed file: %w", err)
			}
			fmt.Printf("catalog seed %s is valid\n", args[0])
			return nil
		},
	}
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wallet"}
	cmd.AddCommand(walletGenerateCmd())
	return cmd
}

func walletGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "generate a new receiving wallet and print its mnemonic, base58 private key, and address",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, mnemonic, err := walletkeys.NewRandomWallet()
			if err != nil {
				return fmt.Errorf("admin: generate wallet: %w", err)
			}
			fmt.Printf("address:     %s\n", w.Address())
			fmt.Printf("mnemonic:    %s\n", mnemonic)
			fmt.Printf("private_key: %s\n", walletkeys.EncodeBase58PrivateKey(w))
			fmt.Println("store the private_key as receiving_wallet_key; do not commit the mnemonic to source control")
			return nil
		},
	}
}
