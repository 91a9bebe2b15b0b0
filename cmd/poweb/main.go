// Poweb is a command-line client for the PoWeb gateway unary endpoints and
// the parcel collection protocol.
//
// Usage:
//
//	poweb pre-register --gateway <host> [--port <port>] [--tls] --public-key-digest <hex>
//	poweb register --gateway <host> [--port <port>] [--tls] --request-file <path>
//	poweb deliver --gateway <host> [--port <port>] [--tls] --parcel-file <path> --countersignature-file <path>
//	poweb collect --gateway <host> [--port <port>] [--tls] --data-dir <path> [--mode keep-alive|close-upon-completion]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	gatewayHost string
	gatewayPort int
	gatewayTLS  bool
)

var rootCmd = &cobra.Command{
	Use:   "poweb",
	Short: "Command-line client for a PoWeb gateway",
	Long: `A standalone client for the Parcel over Web binding: pre-registration,
node registration, parcel delivery, and parcel collection against a single
gateway endpoint.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&gatewayHost, "gateway", "", "gateway host (required)")
	rootCmd.PersistentFlags().IntVar(&gatewayPort, "port", 276, "gateway port")
	rootCmd.PersistentFlags().BoolVar(&gatewayTLS, "tls", false, "use TLS/WSS to reach the gateway")
	_ = rootCmd.MarkPersistentFlagRequired("gateway")

	rootCmd.AddCommand(preRegisterCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(collectCmd)
}
