package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaycorp/relaynet-poweb-go/internal/identity"
	"github.com/relaycorp/relaynet-poweb-go/poweb"
)

func newClient() *poweb.Client {
	endpoint := poweb.NewEndpoint(gatewayHost, gatewayPort, gatewayTLS)
	return poweb.New(endpoint)
}

var publicKeyDigestHex string

var preRegisterCmd = &cobra.Command{
	Use:   "pre-register",
	Short: "Pre-register a node's public key with the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := hex.DecodeString(publicKeyDigestHex); err != nil {
			return fmt.Errorf("public-key-digest must be hex: %w", err)
		}

		client := newClient()
		defer client.Close()

		result, err := client.PreRegisterNode(cmd.Context(), publicKeyDigestHex)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", hexAuthorization(result.Authorization))
		return nil
	},
}

var registrationRequestPath string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a node using its pre-registration authorization",
	RunE: func(cmd *cobra.Command, args []string) error {
		requestBody, err := os.ReadFile(registrationRequestPath)
		if err != nil {
			return fmt.Errorf("reading registration request file: %w", err)
		}

		client := newClient()
		defer client.Close()

		registration, err := client.RegisterNode(cmd.Context(), requestBody)
		if err != nil {
			return err
		}

		_, err = os.Stdout.Write(registration)
		return err
	},
}

var (
	parcelFilePath           string
	countersignatureFilePath string
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Deliver a parcel to the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		parcel, err := os.ReadFile(parcelFilePath)
		if err != nil {
			return fmt.Errorf("reading parcel file: %w", err)
		}
		countersignature, err := os.ReadFile(countersignatureFilePath)
		if err != nil {
			return fmt.Errorf("reading countersignature file: %w", err)
		}

		client := newClient()
		defer client.Close()

		if err := client.DeliverParcel(cmd.Context(), parcel, countersignature); err != nil {
			var rejected *poweb.RejectedParcelError
			if errors.As(err, &rejected) {
				return fmt.Errorf("parcel rejected: %w", rejected)
			}
			return err
		}

		fmt.Println("parcel delivered")
		return nil
	},
}

var (
	collectDataDir string
	collectMode    string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect parcels from the gateway and print their sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := identity.LoadOrGenerate(collectDataDir, gatewayHost)
		if err != nil {
			return fmt.Errorf("loading node identity: %w", err)
		}

		client := newClient()
		defer client.Close()

		stream, err := client.CollectParcels([]poweb.NonceSigner{signer}, poweb.StreamingMode(collectMode))
		if err != nil {
			return err
		}
		defer stream.Close()

		ctx := cmd.Context()
		for stream.Next(ctx) {
			collection := stream.Collection()
			fmt.Printf("collected %d bytes\n", len(collection.ParcelSerialized))
			collection.Ack()
		}

		return stream.Err()
	},
}

func init() {
	preRegisterCmd.Flags().StringVar(&publicKeyDigestHex, "public-key-digest", "", "hex SHA-256 digest of the node's public key (required)")
	_ = preRegisterCmd.MarkFlagRequired("public-key-digest")

	registerCmd.Flags().StringVar(&registrationRequestPath, "request-file", "", "path to the serialised registration request (required)")
	_ = registerCmd.MarkFlagRequired("request-file")

	deliverCmd.Flags().StringVar(&parcelFilePath, "parcel-file", "", "path to the serialised parcel (required)")
	deliverCmd.Flags().StringVar(&countersignatureFilePath, "countersignature-file", "", "path to the detached countersignature over the parcel (required)")
	_ = deliverCmd.MarkFlagRequired("parcel-file")
	_ = deliverCmd.MarkFlagRequired("countersignature-file")

	collectCmd.Flags().StringVar(&collectDataDir, "data-dir", "./poweb-data", "directory for the node's persisted identity")
	collectCmd.Flags().StringVar(&collectMode, "mode", "keep-alive", "streaming mode: keep-alive or close-upon-completion")
}

func hexAuthorization(authorization []byte) string {
	return hex.EncodeToString(authorization)
}
