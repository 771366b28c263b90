package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/token"
)

var (
	mintSecret     string
	mintIdentifier string
	mintCaveats    []string
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a bearer token for an account",
	Long: `Mint issues a token bound to the receiver secret. Without --secret a
fresh 32-byte secret is generated and printed alongside the token.`,
	RunE: runMint,
}

func init() {
	mintCmd.Flags().StringVar(&mintSecret, "secret", "", "base64 receiver secret (defaults to receiver.secret)")
	mintCmd.Flags().StringVar(&mintIdentifier, "id", "", "account identifier")
	mintCmd.Flags().StringArrayVar(&mintCaveats, "caveat", nil, "first-party caveat to add, repeatable")
	_ = mintCmd.MarkFlagRequired("id")
}

func runMint(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	secret := conf.Receiver.SecretBytes
	if mintSecret != "" {
		var err error
		secret, err = base64.StdEncoding.DecodeString(mintSecret)
		if err != nil {
			return errors.New("--secret must be base64")
		}
	}
	if len(secret) == 0 {
		secret = make([]byte, ilp3.MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		fmt.Fprintf(out, "secret: %s\n", base64.StdEncoding.EncodeToString(secret))
	}

	tok, err := token.Mint(secret, mintIdentifier)
	if err != nil {
		return err
	}
	for _, c := range mintCaveats {
		tok, err = tok.WithCaveat(token.ParseCaveat(c))
		if err != nil {
			return err
		}
	}

	encoded, err := tok.Encode()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "token: %s\n", encoded)
	return nil
}
