package fingerprint

// Index answers duplicate lookups in constant time. It follows the same
// precedence as FindDuplicate: content first, then name, and the first
// record seen for a key is the one reported.
type Index struct {
	byHash map[string]Record
	byName map[string]Record
}

func NewIndex(records []Record) *Index {
	idx := &Index{
		byHash: make(map[string]Record, len(records)),
		byName: make(map[string]Record, len(records)),
	}
	for _, r := range records {
		idx.Add(r)
	}
	return idx
}

// Add registers r unless its keys are already taken.
func (idx *Index) Add(r Record) {
	if r.ContentHash != "" {
		if _, ok := idx.byHash[r.ContentHash]; !ok {
			idx.byHash[r.ContentHash] = r
		}
	}
	if name := NormalizeDisplayName(r.DisplayName); name != "" {
		if _, ok := idx.byName[name]; !ok {
			idx.byName[name] = r
		}
	}
}

func (idx *Index) Lookup(candidate Fingerprint) (Match, bool) {
	if candidate.ContentHash != "" {
		if r, ok := idx.byHash[candidate.ContentHash]; ok {
			return Match{Record: r, Reason: ReasonContent}, true
		}
	}
	if name := NormalizeDisplayName(candidate.DisplayName); name != "" {
		if r, ok := idx.byName[name]; ok {
			return Match{Record: r, Reason: ReasonName}, true
		}
	}
	return Match{}, false
}
