package changes

import "github.com/tordrt/dbascode/internal/tree"

// Order sorts records so that every record follows the records it depends on.
// Only dependencies on paths of other records in the batch are considered.
// When a pass makes no progress, because of a cycle, the remaining records
// are appended in their original order.
func Order(records []*Record, deps tree.Dependencies) []*Record {
	inBatch := make(map[string]bool, len(records))
	for _, r := range records {
		inBatch[r.Path] = true
	}
	pending := make(map[string][]string, len(records))
	for _, r := range records {
		var list []string
		for _, d := range deps[r.Path] {
			if inBatch[d] {
				list = append(list, d)
			}
		}
		pending[r.Path] = list
	}
	res := make([]*Record, 0, len(records))
	satisfied := make(map[string]bool, len(records))
	rest := records
	for len(rest) > 0 {
		var next []*Record
		for _, r := range rest {
			left := pending[r.Path][:0]
			for _, d := range pending[r.Path] {
				if !satisfied[d] {
					left = append(left, d)
				}
			}
			pending[r.Path] = left
			if len(left) == 0 {
				satisfied[r.Path] = true
				res = append(res, r)
			} else {
				next = append(next, r)
			}
		}
		if len(next) == len(rest) {
			return append(res, next...)
		}
		rest = next
	}
	return res
}

// DropOrder sorts drop records so dependents are dropped before the objects
// they depend on. It is the reverse of the create order.
func DropOrder(records []*Record, deps tree.Dependencies) []*Record {
	res := Order(records, deps)
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}
