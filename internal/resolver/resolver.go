// =============================================================================
// CFDI XML to XLSX - Substitution Resolver
// =============================================================================
//
// A CFDI with TipoRelacion 04 formally replaces the documents it lists in
// CfdiRelacionados. The resolver links both sides:
//
//   original.SupersededBy = {substitute uuid, folio label, date}
//   substitute.Supersedes = {original uuid, folio label, date, total}
//
// RESOLUTION IS PURE:
//   Resolve never touches its inputs. It returns copies of the export subset
//   with annotations reset and then recomputed, so running it again over the
//   same documents yields the same output.
//
// =============================================================================

package resolver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/types"
)

// Index maps UUID to document over the corpus used for resolution.
type Index map[string]*types.FinancialDocument

// NewIndex builds an Index from any number of document lists. When the same
// UUID appears more than once the first occurrence is kept.
func NewIndex(lists ...[]*types.FinancialDocument) Index {
	idx := Index{}
	for _, docs := range lists {
		for _, d := range docs {
			if d == nil {
				continue
			}
			if _, ok := idx[d.UUID]; !ok {
				idx[d.UUID] = d
			}
		}
	}
	return idx
}

// Link is one resolved substitution.
type Link struct {
	Substitute string
	Original   string
}

// Result is the output of a resolution pass.
type Result struct {
	// Documents are annotated copies of the subset, in subset order.
	Documents []*types.FinancialDocument

	// Links lists every resolved (substitute, original) pair in visit order.
	Links []Link

	// Unresolved counts references whose original is not in the index.
	Unresolved int

	// Ambiguous lists substitutes in the subset that resolved more than one
	// original; their Supersedes reflects the last one visited.
	Ambiguous []string
}

// Resolve annotates a copy of subset using the relations found in index.
//
// PARAMETERS:
//   - index: every document that may take part in a relation, at least all
//     substitutes and the originals they reference.
//   - subset: the documents to annotate (e.g. the export selection).
//
// RETURNS:
//   - A Result with the annotated copies and the resolution counters.
func Resolve(index Index, subset []*types.FinancialDocument) Result {
	out := make([]*types.FinancialDocument, 0, len(subset))
	inSubset := make(map[string]*types.FinancialDocument, len(subset))

	for _, d := range subset {
		if d == nil {
			continue
		}
		cp := *d
		cp.ClearAnnotations()
		out = append(out, &cp)
		if _, dup := inSubset[cp.UUID]; !dup {
			inSubset[cp.UUID] = &cp
		}
	}

	res := Result{Documents: out}

	for _, sub := range substitutes(index, subset) {
		resolved := 0
		seen := map[string]bool{}

		for _, u := range sub.RelatedUUIDs {
			if seen[u] {
				continue
			}
			seen[u] = true

			orig, ok := index[u]
			if !ok {
				res.Unresolved++
				continue
			}
			resolved++
			res.Links = append(res.Links, Link{Substitute: sub.UUID, Original: orig.UUID})

			if o, ok := inSubset[orig.UUID]; ok {
				o.SupersededBy = &types.SupersededBy{
					UUID:       sub.UUID,
					FolioLabel: sub.FolioLabel(),
					Date:       sub.IssuedAt,
				}
			}
			if d, ok := inSubset[sub.UUID]; ok {
				d.Supersedes = &types.Supersedes{
					UUID:       orig.UUID,
					FolioLabel: orig.FolioLabel(),
					Date:       orig.IssuedAt,
					Amount:     orig.Total,
				}
			}
		}

		if _, ok := inSubset[sub.UUID]; ok && resolved > 1 {
			res.Ambiguous = append(res.Ambiguous, sub.UUID)
		}
	}

	// Mirror annotations onto duplicate entries of the subset.
	for _, d := range out {
		if first := inSubset[d.UUID]; first != d {
			d.SupersededBy, d.Supersedes = first.SupersededBy, first.Supersedes
		}
	}

	return res
}

// substitutes returns every substitution document of the corpus (index plus
// subset), each once, in a stable order: subset order first, then the
// remaining index substitutes sorted by UUID.
func substitutes(index Index, subset []*types.FinancialDocument) []*types.FinancialDocument {
	var out []*types.FinancialDocument
	seen := map[string]bool{}

	add := func(d *types.FinancialDocument) {
		if d == nil || seen[d.UUID] || !d.IsSubstitution() {
			return
		}
		seen[d.UUID] = true
		out = append(out, d)
	}

	for _, d := range subset {
		add(d)
	}

	var rest []*types.FinancialDocument
	for _, d := range index {
		if d != nil && !seen[d.UUID] && d.IsSubstitution() {
			rest = append(rest, d)
		}
	}
	slices.SortFunc(rest, func(a, b *types.FinancialDocument) int { return strings.Compare(a.UUID, b.UUID) })
	return append(out, rest...)
}

// =============================================================================
// STORE-BACKED RESOLUTION
// =============================================================================

// Source is the slice of the store contract the resolver needs.
type Source interface {
	QueryWithRelations(ctx context.Context) ([]*types.FinancialDocument, error)
	QueryByUUIDs(ctx context.Context, uuids []string) ([]*types.FinancialDocument, error)
}

// ResolveFromStore builds the corpus index from the store (every document with
// relations plus the originals they reference) and the subset itself, then
// resolves.
func ResolveFromStore(ctx context.Context, src Source, subset []*types.FinancialDocument) (Result, error) {
	related, err := src.QueryWithRelations(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load substitutes: %w", err)
	}

	wanted := map[string]bool{}
	var refs []string
	for _, list := range [][]*types.FinancialDocument{related, subset} {
		for _, d := range list {
			if d == nil || !d.IsSubstitution() {
				continue
			}
			for _, u := range d.RelatedUUIDs {
				if !wanted[u] {
					wanted[u] = true
					refs = append(refs, u)
				}
			}
		}
	}

	originals, err := src.QueryByUUIDs(ctx, refs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load originals: %w", err)
	}

	return Resolve(NewIndex(subset, related, originals), subset), nil
}
