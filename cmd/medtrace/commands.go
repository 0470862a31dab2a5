package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/medweb3/medtrace/pkg/app"
	"github.com/medweb3/medtrace/pkg/database/query"
	"github.com/medweb3/medtrace/pkg/ledger"
	"github.com/medweb3/medtrace/pkg/medtrace"
)

// runNode runs fn against a freshly initialized node, stopping it afterwards
func runNode(configPath string, fn func(ctx context.Context, n *node) error) error {
	n := newNode()
	return app.Run(configPath, n, func(ctx context.Context) error {
		return fn(ctx, n)
	})
}

func newKeygenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <name>",
		Short: "Generate a named ed25519 keypair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := app.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			cliConfig, err := decodeCLIConfig(config.AppConfig)
			if err != nil {
				return err
			}

			key, err := newKeyring(cliConfig.DataDir).Generate(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\n", base58.Encode(key.Public().(ed25519.PublicKey)))
			return nil
		},
	}
}

func newAirdropCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <key|address> <lamports>",
		Short: "Credit lamports to an account on the local ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid lamports")
			}

			return runNode(*configPath, func(ctx context.Context, n *node) error {
				address, err := n.keys().Resolve(args[0])
				if err != nil {
					return err
				}
				if err := n.bank.RequestAirdrop(ctx, address, lamports); err != nil {
					return err
				}

				balance, err := n.bank.GetBalance(ctx, address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\n", balance)
				return nil
			})
		},
	}
}

func newBalanceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <key|address>",
		Short: "Print the lamport balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*configPath, func(ctx context.Context, n *node) error {
				address, err := n.keys().Resolve(args[0])
				if err != nil {
					return err
				}

				balance, err := n.bank.GetBalance(ctx, address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\n", balance)
				return nil
			})
		},
	}
}

func newCreateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <payer> <batch-id>",
		Short: "Create a batch in a new slot owned by the program",
		Long: `Create a batch in a freshly generated slot account. The payer funds the
slot, signs as the manufacturer and becomes the first owner.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*configPath, func(ctx context.Context, n *node) error {
				payer, err := n.keys().Load(args[0])
				if err != nil {
					return err
				}

				_, slot, err := ed25519.GenerateKey(rand.Reader)
				if err != nil {
					return err
				}
				slotAddress := slot.Public().(ed25519.PublicKey)

				fmt.Fprintf(cmd.OutOrStdout(), "batch: %s\n", base58.Encode(slotAddress))

				ix := medtrace.NewCreateBatchInstruction(
					&medtrace.CreateBatchInstructionAccounts{
						Payer:    payer.Public().(ed25519.PublicKey),
						NewBatch: slotAddress,
					},
					&medtrace.CreateBatchInstructionArgs{
						BatchId: args[1],
					},
				)
				return n.submit(ctx, cmd.OutOrStdout(), []ed25519.PrivateKey{payer, slot}, ix)
			})
		},
	}
}

func newTransferCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <owner> <batch> <new-owner>",
		Short: "Transfer custody of a batch to a new owner",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*configPath, func(ctx context.Context, n *node) error {
				owner, err := n.keys().Load(args[0])
				if err != nil {
					return err
				}
				batch, err := n.keys().Resolve(args[1])
				if err != nil {
					return err
				}
				newOwner, err := n.keys().Resolve(args[2])
				if err != nil {
					return err
				}

				ix := medtrace.NewTransferOwnershipInstruction(
					&medtrace.TransferOwnershipInstructionAccounts{
						CurrentOwner: owner.Public().(ed25519.PublicKey),
						Batch:        batch,
					},
					&medtrace.TransferOwnershipInstructionArgs{
						NewOwner: newOwner,
					},
				)
				return n.submit(ctx, cmd.OutOrStdout(), []ed25519.PrivateKey{owner}, ix)
			})
		},
	}
}

func newDeactivateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <owner> <batch>",
		Short: "Permanently deactivate a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*configPath, func(ctx context.Context, n *node) error {
				owner, err := n.keys().Load(args[0])
				if err != nil {
					return err
				}
				batch, err := n.keys().Resolve(args[1])
				if err != nil {
					return err
				}

				ix := medtrace.NewDeactivateBatchInstruction(&medtrace.DeactivateBatchInstructionAccounts{
					CurrentOwner: owner.Public().(ed25519.PublicKey),
					Batch:        batch,
				})
				return n.submit(ctx, cmd.OutOrStdout(), []ed25519.PrivateKey{owner}, ix)
			})
		},
	}
}

func newVerifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <payer> <batch>",
		Short: "Run the on-chain verification of a batch and print its audit log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*configPath, func(ctx context.Context, n *node) error {
				payer, err := n.keys().Load(args[0])
				if err != nil {
					return err
				}
				batch, err := n.keys().Resolve(args[1])
				if err != nil {
					return err
				}

				ix := medtrace.NewVerifyBatchInstruction(&medtrace.VerifyBatchInstructionAccounts{
					Batch: batch,
				})
				return n.submit(ctx, cmd.OutOrStdout(), []ed25519.PrivateKey{payer}, ix)
			})
		},
	}
}

func newShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch>",
		Short: "Decode and print a batch account without submitting a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*configPath, func(ctx context.Context, n *node) error {
				address, err := n.keys().Resolve(args[0])
				if err != nil {
					return err
				}

				info, err := n.bank.GetAccountInfo(ctx, address)
				if err != nil {
					return errors.Wrapf(err, "batch %s", base58.Encode(address))
				}
				batch, err := medtrace.GetBatchAccount(info)
				if err != nil {
					return errors.Wrapf(err, "batch %s", base58.Encode(address))
				}

				fmt.Fprintln(cmd.OutOrStdout(), batch.String())
				return nil
			})
		},
	}
}

func newListCmd(configPath *string) *cobra.Command {
	var (
		limit  uint64
		cursor string
		order  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the batches held by the program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := query.ToOrdering(order)
			if err != nil {
				return errors.Wrap(err, "invalid order")
			}
			start, err := query.FromBase58(cursor)
			if err != nil {
				return err
			}

			return runNode(*configPath, func(ctx context.Context, n *node) error {
				opts := []query.Option{query.WithLimit(limit), query.WithDirection(direction)}
				if len(start) > 0 {
					opts = append(opts, query.WithCursor(start))
				}

				records, err := n.bank.GetProgramAccounts(ctx, medtrace.PROGRAM_ID, opts...)
				if errors.Is(err, ledger.ErrAccountNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "no batches")
					return nil
				} else if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, record := range records {
					var batch medtrace.BatchAccount
					if err := batch.Unmarshal(record.Data); err != nil {
						fmt.Fprintf(out, "%d\t%s\t<invalid: %v>\n", record.Id, record.Address, err)
						continue
					}
					fmt.Fprintf(
						out,
						"%d\t%s\t%s\towner=%s\tactive=%t\thistory=%d\n",
						record.Id,
						record.Address,
						batch.BatchId,
						base58.Encode(batch.CurrentOwner),
						batch.IsActive,
						len(batch.OwnershipHistory),
					)
				}
				if len(records) > 0 && uint64(len(records)) == limit {
					fmt.Fprintf(out, "next cursor: %s\n", query.ToCursor(records[len(records)-1].Id).ToBase58())
				}
				return nil
			})
		},
	}

	cmd.Flags().Uint64Var(&limit, "limit", 100, "maximum number of batches to list")
	cmd.Flags().StringVar(&cursor, "cursor", "", "list batches after this cursor")
	cmd.Flags().StringVar(&order, "order", "asc", "listing order by creation (asc|desc)")
	return cmd
}
