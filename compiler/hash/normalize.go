package hash

import (
	"sort"

	"github.com/chazu/consttab/compiler"
)

// Normalize converts a parsed file into its frozen hashing model, dropping
// positions, doc comments and derive-list spelling along the way.
func Normalize(file *compiler.File) *HFile {
	hf := &HFile{Package: file.Package}
	for _, imp := range file.Imports {
		hf.Imports = append(hf.Imports, HImport{Name: imp.Name, Path: imp.Path})
	}
	for _, ts := range file.TagSets {
		hf.TagSets = append(hf.TagSets, normalizeTagSet(ts))
	}
	return hf
}

func normalizeTagSet(ts *compiler.TagSet) HTagSet {
	ht := HTagSet{
		Name:    ts.Name,
		Width:   ts.EffectiveWidth(),
		Derives: normalizeDerives(ts.Derives),
	}
	if ts.Record != nil {
		ht.Record.Name = ts.Record.Name
		for _, f := range ts.Record.Fields {
			ht.Record.Fields = append(ht.Record.Fields, HField{
				Name: f.Name,
				Type: f.Type,
				Tag:  f.Tag,
			})
		}
	}
	for _, tag := range ts.Tags {
		ht.Tags = append(ht.Tags, HTag{Name: tag.Name, Init: tag.Init})
	}
	return ht
}

// normalizeDerives sorts and deduplicates the derive names so spelling order
// does not affect the fingerprint.
func normalizeDerives(derives []*compiler.Derive) []string {
	if len(derives) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(derives))
	var names []string
	for _, d := range derives {
		if !seen[d.Name] {
			seen[d.Name] = true
			names = append(names, d.Name)
		}
	}
	sort.Strings(names)
	return names
}
