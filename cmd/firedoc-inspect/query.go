package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/model"
)

var (
	flagQueryFilter = []string{}
	flagQueryOrder  string
	flagQueryLimit  int32
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a read-only query against the local view and print matches",
		Long: `Run a read-only query against the local view and print matches.

--filter accepts "field=value" (equality only; values are parsed as int64,
then float64, then bool, then left as a string). Repeat --filter to AND multiple
predicates together.`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringArrayVar(&flagQueryFilter, "filter", nil, `equality filter "field=value", repeatable`)
	cmd.Flags().StringVar(&flagQueryOrder, "order-by", "", "field to order ascending by")
	cmd.Flags().Int32Var(&flagQueryLimit, "limit", 0, "max results, 0 for unlimited")

	return cmd
}

func parseFilterValue(raw string) model.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return model.Int(i)
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.Double(f)
	}

	if b, err := strconv.ParseBool(raw); err == nil {
		return model.Bool(b)
	}

	return model.String(raw)
}

func buildQuery(collection string) (core.Query, error) {
	query := core.Query{CollectionPath: model.NewResourcePath(collection)}

	for _, raw := range flagQueryFilter {
		field, value, ok := strings.Cut(raw, "=")
		if !ok {
			return core.Query{}, fmt.Errorf("invalid --filter %q: expected field=value", raw)
		}

		query.Filters = append(query.Filters, core.NewFieldFilter(
			model.NewFieldPath(strings.Split(field, ".")...),
			core.OpEqual,
			parseFilterValue(value),
		))
	}

	if flagQueryOrder != "" {
		query.ExplicitOrderBy = append(query.ExplicitOrderBy, core.OrderBy{
			Path:      model.NewFieldPath(strings.Split(flagQueryOrder, ".")...),
			Direction: core.Ascending,
		})
	}

	query.Limit = flagQueryLimit

	return query, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())

	query, err := buildQuery(args[0])
	if err != nil {
		return err
	}

	result, err := cc.Store.ExecuteQuery(cmd.Context(), query, false)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}

	if len(result.Documents) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matching documents")
		return nil
	}

	for keyStr, doc := range result.Documents {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (pending_writes=%t)\n", keyStr, doc.HasPendingWrites())

		for path, v := range doc.Data() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", path, formatValue(v))
		}
	}

	return nil
}
