package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fjod/med_store/internal/cart"
	"github.com/fjod/med_store/internal/catalog"
	"github.com/fjod/med_store/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const defaultCartKey = "local"

type cartOptions struct {
	*rootOptions
	key string
}

func cartCmd(root *rootOptions) *cobra.Command {
	opts := &cartOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change a stored cart",
	}
	cmd.PersistentFlags().StringVar(&opts.key, "cart", defaultCartKey, "Cart key")

	cmd.AddCommand(
		cartAddCmd(opts),
		cartRemoveCmd(opts),
		cartUpdateCmd(opts),
		cartClearCmd(opts),
		cartShowCmd(opts),
	)
	return cmd
}

// withStore opens the configured backend, rehydrates the cart and hands it to fn.
func (o *cartOptions) withStore(ctx context.Context, fn func(*cart.Store) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	backend, closeBackend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open cart storage: %w", err)
	}
	defer closeBackend(ctx)

	return fn(cart.Open(ctx, backend, o.key, cart.WithLogger(logger)))
}

// reportMutation turns a failed snapshot write into a warning on stderr.
func reportMutation(cmd *cobra.Command, s *cart.Store, err error) error {
	if err != nil {
		if !errors.Is(err, cart.ErrPersistenceWrite) {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return printCart(cmd.OutOrStdout(), s)
}

func cartAddCmd(opts *cartOptions) *cobra.Command {
	var (
		name        string
		price       string
		imageURL    string
		category    string
		quantity    int
		fromCatalog bool
	)

	cmd := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var snapshot domain.ProductSnapshot
			if fromCatalog {
				p, err := lookupProduct(ctx, opts.rootOptions, args[0])
				if err != nil {
					return err
				}
				snapshot = p.Snapshot()
			} else {
				parsed, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("%w: price %q is not a number", cart.ErrInvalidArgument, price)
				}
				snapshot = domain.ProductSnapshot{
					ID:       args[0],
					Name:     name,
					Price:    parsed,
					ImageURL: imageURL,
					Category: category,
				}
			}

			return opts.withStore(ctx, func(s *cart.Store) error {
				return reportMutation(cmd, s, s.Add(ctx, snapshot, quantity))
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Product name")
	cmd.Flags().StringVar(&price, "price", "", "Unit price")
	cmd.Flags().StringVar(&imageURL, "image", "", "Image URL")
	cmd.Flags().StringVar(&category, "category", "", "Category name")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", cart.DefaultQuantity, "Quantity to add")
	cmd.Flags().BoolVar(&fromCatalog, "from-catalog", false, "Snapshot the product from the catalog database")
	cmd.MarkFlagsMutuallyExclusive("from-catalog", "name")
	cmd.MarkFlagsMutuallyExclusive("from-catalog", "price")
	return cmd
}

func lookupProduct(ctx context.Context, opts *rootOptions, id string) (*domain.Product, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	repo, err := catalog.NewRepository(cfg.Catalog.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer repo.Close()
	return repo.GetProduct(ctx, id)
}

func cartRemoveCmd(opts *cartOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withStore(ctx, func(s *cart.Store) error {
				return reportMutation(cmd, s, s.Remove(ctx, args[0]))
			})
		},
	}
}

func cartUpdateCmd(opts *cartOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update PRODUCT_ID QUANTITY",
		Short: "Set the quantity of a product already in the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: quantity %q is not an integer", cart.ErrInvalidArgument, args[1])
			}
			ctx := cmd.Context()
			return opts.withStore(ctx, func(s *cart.Store) error {
				return reportMutation(cmd, s, s.UpdateQuantity(ctx, args[0], quantity))
			})
		},
	}
}

func cartClearCmd(opts *cartOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return opts.withStore(ctx, func(s *cart.Store) error {
				return reportMutation(cmd, s, s.Clear(ctx))
			})
		},
	}
}

func cartShowCmd(opts *cartOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(s *cart.Store) error {
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{
						"cart_id": s.Key(),
						"items":   s.Entries(),
						"count":   s.Count(),
						"total":   s.Total().StringFixed(2),
					})
				}
				return printCart(cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printCart(out io.Writer, s *cart.Store) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tUNIT\tSUBTOTAL")
	for _, e := range s.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.Product.ID, e.Product.Name, e.Quantity, e.Product.Price.StringFixed(2), e.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%s\n", s.Count(), s.Total().StringFixed(2))
	return tw.Flush()
}
