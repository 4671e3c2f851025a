package record

// UnknownGeneID marks a record whose sources disagree on their gene.
const UnknownGeneID = -1

// Extension carries subtype-specific fields and merges them.
// MergeExtension is the hook run after the generic merge has built name,
// signals and side data.
type Extension interface {
	// MergeExtension combines the extensions of all merged sources.
	// The receiver is the first non-nil extension of the source set.
	MergeExtension(sources []Extension) Extension

	// Clone returns an independent copy.
	Clone() Extension
}

// GeneExt identifies the gene a record is measured for.
type GeneExt struct {
	GeneID int

	// Centered is true when the record is the merge of all measurements of one gene.
	Centered bool
}

// MergeExtension keeps the gene when every source agrees and collapses it to
// UnknownGeneID otherwise.
func (g GeneExt) MergeExtension(sources []Extension) Extension {
	id, agree := 0, true
	first := true
	for _, s := range sources {
		ge, ok := s.(GeneExt)
		if !ok {
			agree = false
			continue
		}
		if first {
			id, first = ge.GeneID, false
			continue
		}
		if ge.GeneID != id {
			agree = false
		}
	}
	if !agree || first {
		return GeneExt{GeneID: UnknownGeneID, Centered: false}
	}
	return GeneExt{GeneID: id, Centered: true}
}

// Clone implements Extension.
func (g GeneExt) Clone() Extension { return g }

// MergeExtensions runs the hook of the first non-nil extension over all of
// them. Returns nil when no source carries an extension.
func MergeExtensions(exts []Extension) Extension {
	for _, e := range exts {
		if e != nil {
			return e.MergeExtension(exts)
		}
	}
	return nil
}
