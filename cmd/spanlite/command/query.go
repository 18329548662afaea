package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	spanlite "github.com/spanlite/spanlite-go-sdk"
)

func queryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a query and print rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			params, _ := cmd.Flags().GetStringToString("param")
			readWrite, _ := cmd.Flags().GetBool("read-write")

			d, closeDriver, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeDriver()

			var opts []spanlite.RunOption
			if !readWrite {
				opts = append(opts, spanlite.WithReadOnly())
			}
			rows, err := spanlite.DoWithResult(ctx, d, func(ctx context.Context, t *spanlite.Transaction) (
				[]spanlite.Row, error,
			) {
				return collect(ctx, t.Query(ctx, args[0], toParams(params)))
			}, append(opts, spanlite.WithLabel("cli query"))...)
			if err != nil {
				return err
			}

			return printRows(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringToString("param", nil, "query parameter as name=value, may be repeated")
	cmd.Flags().Bool("read-write", false, "run the query in a read-write transaction")

	return cmd
}

func execCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec SQL",
		Short: "Execute a DML statement in a read-write transaction and print the row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			params, _ := cmd.Flags().GetStringToString("param")

			d, closeDriver, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer closeDriver()

			count, err := spanlite.DoWithResult(ctx, d, func(ctx context.Context, t *spanlite.Transaction) (int64, error) {
				r, err := t.Execute(ctx, args[0], toParams(params))
				if err != nil {
					return 0, err
				}

				return r.RowCount, nil
			}, spanlite.WithLabel("cli exec"))
			if err != nil {
				return err
			}
			cmd.Printf("%d rows affected\n", count)

			return nil
		},
	}
	cmd.Flags().StringToString("param", nil, "statement parameter as name=value, may be repeated")

	return cmd
}

func toParams(params map[string]string) map[string]*structpb.Value {
	if len(params) == 0 {
		return nil
	}
	values := make(map[string]*structpb.Value, len(params))
	for name, value := range params {
		values[name] = structpb.NewStringValue(value)
	}

	return values
}

// collect reads all rows of rows. Rows are printed only after the
// transaction succeeds since a retried attempt reads them again.
func collect(ctx context.Context, rows *spanlite.Rows) ([]spanlite.Row, error) {
	defer rows.Close()

	var all []spanlite.Row
	for row, err := range rows.Rows(ctx) {
		if err != nil {
			return nil, err
		}
		all = append(all, row)
	}

	return all, nil
}

func printRows(w io.Writer, rows []spanlite.Row) error {
	for _, row := range rows {
		fields := make(map[string]*structpb.Value, len(row.Fields()))
		for i, name := range row.Fields() {
			fields[name] = row.Values()[i]
		}
		line, err := protojson.Marshal(&structpb.Struct{Fields: fields})
		if err != nil {
			return fmt.Errorf("marshal row: %w", err)
		}
		if _, err = fmt.Fprintln(w, string(line)); err != nil {
			return err
		}
	}

	return nil
}
