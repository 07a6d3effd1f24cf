package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/firedoc/internal/model"
)

func newOverlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overlay <collection> <document-id>",
		Short: "Dump the pending local-mutation overlay for one document",
		Args:  cobra.ExactArgs(2),
		RunE:  runOverlay,
	}
}

func runOverlay(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())

	key := model.MustDocumentKey(args[0], args[1])

	overlay, found, err := cc.Store.DumpOverlay(cmd.Context(), key)
	if err != nil {
		return fmt.Errorf("dumping overlay for %s: %w", key.String(), err)
	}

	if !found {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no pending overlay\n", key.String())
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: batch=%d kind=%s\n", key.String(), overlay.LargestBatchID, mutationKindLabel(overlay.Mutation.Kind()))

	for path, v := range overlay.Mutation.RawValue() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", path, formatValue(v))
	}

	for _, ft := range overlay.Mutation.FieldTransforms() {
		fmt.Fprintf(cmd.OutOrStdout(), "  transform %s\n", ft.Path.CanonicalString())
	}

	return nil
}

func mutationKindLabel(k model.MutationKind) string {
	switch k {
	case model.MutationSet:
		return "set"
	case model.MutationPatch:
		return "patch"
	case model.MutationDelete:
		return "delete"
	case model.MutationVerify:
		return "verify"
	default:
		return "unknown"
	}
}

func formatValue(v model.Value) string {
	switch v.Kind() {
	case model.KindNull:
		return "null"
	case model.KindBoolean:
		return fmt.Sprintf("%t", v.AsBool())
	case model.KindInteger:
		return fmt.Sprintf("%d", v.AsInt64())
	case model.KindDouble:
		return fmt.Sprintf("%g", v.AsFloat64())
	case model.KindString:
		return fmt.Sprintf("%q", v.AsString())
	case model.KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.AsBytes()))
	case model.KindTimestamp:
		return v.AsTimestamp().Time().String()
	case model.KindServerTimestamp:
		return "<pending server timestamp>"
	case model.KindReference:
		ref := v.AsReference()
		return fmt.Sprintf("ref(%s/%s)", ref.DatabaseID, ref.Key.String())
	case model.KindGeoPoint:
		gp := v.AsGeoPoint()
		return fmt.Sprintf("(%g, %g)", gp.Latitude, gp.Longitude)
	case model.KindArray:
		return fmt.Sprintf("<array len=%d>", len(v.AsArray()))
	case model.KindVector:
		return fmt.Sprintf("<vector len=%d>", len(v.AsVector()))
	case model.KindMap:
		return fmt.Sprintf("<map len=%d>", len(v.AsMap()))
	default:
		return "<unknown>"
	}
}
