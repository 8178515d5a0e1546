package main

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/lwwboard/internal/adapters/tlsconf"
)

const (
	certFilePermission = 0o644
	keyFilePermission  = 0o600
	dirPermission      = 0o750
	defaultValidity    = 365 * 24 * time.Hour
)

func newGenCertCmd() *cobra.Command {
	var (
		certFile, keyFile string
		hosts             []string
		validFor          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "gencert",
		Short: "Write a self-signed certificate and key for the server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			certPEM, keyPEM, err := tlsconf.GenerateSelfSigned(validFor, hosts...)
			if err != nil {
				return err
			}
			if err := writeFile(certFile, certPEM, certFilePermission); err != nil {
				return err
			}
			if err := writeFile(keyFile, keyPEM, keyFilePermission); err != nil {
				return err
			}
			block, _ := pem.Decode(certPEM)
			if block == nil {
				return errors.New("generated certificate is not PEM")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\nsha3-256 fingerprint: %s\n",
				certFile, keyFile, tlsconf.FingerprintDER(block.Bytes))
			return err
		},
	}
	cmd.Flags().StringVar(&certFile, "cert", "certs/server.crt", "certificate output path")
	cmd.Flags().StringVar(&keyFile, "key", "certs/server.key", "private key output path")
	cmd.Flags().StringSliceVar(&hosts, "host", tlsconf.DefaultHosts, "DNS names and IPs the certificate is valid for")
	cmd.Flags().DurationVar(&validFor, "valid-for", defaultValidity, "certificate lifetime")
	return cmd
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
