package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/royalty-go/config"
	"github.com/bitfsorg/royalty-go/ledger"
	"github.com/bitfsorg/royalty-go/royalty"
)

func newInitCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigPath(c.cfg.DataDir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(path, c.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func newSubmitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <file.json>",
		Short: "Record a new pending distribution",
		Long: `Reads a distribution from a JSON file ("-" for stdin) and records it
as pending. A missing id is replaced with a random UUID.

Example file:
  {
    "assetId": "track-42",
    "totalAmount": "1000",
    "currency": "USDC",
    "period": "2024-Q3",
    "splits": [
      {"recipientAddress": "artist@example.com", "percentage": "60", "role": "artist"},
      {"recipientAddress": "1Producer...", "percentage": "40", "role": "producer"}
    ]
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDistribution(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				d, err := a.svc.Submit(cmd.Context(), d)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), d.ID)
				return nil
			})
		},
	}
}

func readDistribution(stdin io.Reader, path string) (*royalty.RoyaltyDistribution, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var d royalty.RoyaltyDistribution
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &d, nil
}

func newRunCmd(c *cli) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Pay out a pending distribution",
		Long: `Settles every split of a pending distribution, or only the failed
splits of a failed one. With --all, runs every pending distribution
oldest first; the exit status is non-zero if any of them has failed
splits.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.FacilitatorURL == "" {
				return errNoFacilitator
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				if all {
					ran, failed, err := a.svc.RunPending(cmd.Context())
					fmt.Fprintf(cmd.OutOrStdout(), "Ran %d distribution(s), %d with failed splits\n", ran, failed)
					if err != nil {
						return err
					}
					if failed > 0 {
						return fmt.Errorf("%d of %d distributions have failed splits", failed, ran)
					}
					return nil
				}
				res, err := a.svc.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Run every pending distribution")
	return cmd
}

func newRetryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Retry the failed splits of a failed distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.FacilitatorURL == "" {
				return errNoFacilitator
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.svc.Retry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), res)
			})
		},
	}
}

// printResult writes res as JSON and reports a partial payout as an error
// so scripts can detect it from the exit status.
func printResult(w io.Writer, res *royalty.DistributionResult) error {
	if err := writeJSON(w, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%d of %d splits failed", len(res.Errors), len(res.Errors)+len(res.Transactions))
	}
	return nil
}

func newListCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List distributions by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := royalty.Status(status)
			switch st {
			case royalty.StatusPending, royalty.StatusProcessing, royalty.StatusCompleted, royalty.StatusFailed:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				ds, err := a.svc.List(cmd.Context(), st)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tASSET\tPERIOD\tAMOUNT\tSPLITS\tCREATED")
				for _, d := range ds {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%d\t%s\n",
						d.ID, d.AssetID, d.Period, d.TotalAmount, d.Currency,
						len(d.Splits), d.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(royalty.StatusPending), "pending, processing, completed or failed")
	return cmd
}

// distributionView is what show prints.
type distributionView struct {
	*royalty.RoyaltyDistribution
	Attempts []*ledger.Attempt `json:"attempts"`
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a distribution and its settlement attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				d, err := a.svc.Get(cmd.Context(), args[0])
				if errors.Is(err, ledger.ErrNotFound) {
					return fmt.Errorf("distribution %s not found", args[0])
				}
				if err != nil {
					return err
				}
				attempts, err := a.svc.Attempts(cmd.Context(), d.ID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), distributionView{RoyaltyDistribution: d, Attempts: attempts})
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
