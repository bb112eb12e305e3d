package refactor

// slot is one element of a reshuffled list: the original element at Old
// moved into place, or a new element for the added Param when Old is -1.
type slot struct {
	Old   int
	Param *ParameterInfo
}

// reshuffle maps an original list of count elements to the new parameter
// order. Deleted parameters drop their element, and a deleted vararg drops
// the whole tail. A retained vararg moves the whole tail starting at its
// slot, which may be empty. Elements missing at the call site contribute
// nothing.
func reshuffle(params []*ParameterInfo, count, varargIndex int) []slot {
	var out []slot
	for _, p := range params {
		switch {
		case p.Deleted:
		case p.IsAdded():
			out = append(out, slot{Old: -1, Param: p})
		case varargIndex >= 0 && p.OldIndex == varargIndex:
			for i := p.OldIndex; i < count; i++ {
				out = append(out, slot{Old: i, Param: p})
			}
		case p.OldIndex < count:
			out = append(out, slot{Old: p.OldIndex, Param: p})
		}
	}
	return out
}
