package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-signer/internal/util/command"
)

const probeTimeout = 5 * time.Second

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Queries the readiness endpoint of a running signer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if cfg.Metrics.ListenAddress == "" {
				return errors.New("metrics.listen_address is not configured")
			}

			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			return probeReadiness(ctx, cmd.OutOrStdout(), "http://"+cfg.Metrics.ListenAddress+"/-/ready", verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Print the probe response")

	return cmd
}

func probeReadiness(ctx context.Context, out io.Writer, url string, verbose bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create readiness request")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "readiness probe failed")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read readiness response")
	}

	if verbose {
		fmt.Fprintf(out, "%d %s\n", res.StatusCode, body)
	}

	if res.StatusCode != http.StatusOK {
		return errors.Errorf("signer is not ready: %s", res.Status)
	}

	return nil
}
