package importer

import (
	"fmt"

	"github.com/google/uuid"
)

// Policy controls what happens when a row's identity already exists.
type Policy int

const (
	// PolicyCreateRenamed (the default) gives conflicting rows a fresh
	// suffixed slug; nothing is ever skipped under this policy.
	PolicyCreateRenamed Policy = iota
	// PolicySkipDuplicates drops conflicting rows from all later stages.
	PolicySkipDuplicates
	// PolicyUpdateDuplicates turns conflicting rows into in-place updates.
	PolicyUpdateDuplicates
)

func (p Policy) String() string {
	switch p {
	case PolicySkipDuplicates:
		return "skip-duplicates"
	case PolicyUpdateDuplicates:
		return "update-duplicates"
	default:
		return "create-renamed"
	}
}

// Resolution partitions a batch by write action. Skip is only ever
// populated under PolicySkipDuplicates.
type Resolution struct {
	ToInsert []*Row
	ToUpdate []*Row
	ToSkip   []*Row
}

// Resolve classifies each row against the existing store snapshot and the
// rows resolved so far in this batch. It must run single-threaded in input
// order: the suffix search for a later row depends on the slugs already
// assigned to earlier ones.
//
// Guarantees on return: every non-skipped row has a slug that is unique
// against both the store snapshot and every other row in the batch, and
// insert rows carry a freshly generated entity ID.
func Resolve(rows []*Row, existing map[string]uuid.UUID, policy Policy) Resolution {
	var res Resolution
	assigned := make(map[string]struct{}, len(rows))

	taken := func(slug string) bool {
		if _, ok := existing[slug]; ok {
			return true
		}
		_, ok := assigned[slug]
		return ok
	}

	for _, row := range rows {
		slug := row.RequestedSlug

		if id, inStore := existing[slug]; inStore {
			switch policy {
			case PolicyUpdateDuplicates:
				// Identity stays as the existing entity's.
				if _, dup := assigned[slug]; dup {
					// A second row for the same entity inside one batch:
					// later rows win is ambiguous, so drop the later one.
					row.skip(fmt.Sprintf("duplicate of row already updating %q", slug))
					res.ToSkip = append(res.ToSkip, row)
					continue
				}
				row.Slug = slug
				row.EntityID = id
				assigned[slug] = struct{}{}
				res.ToUpdate = append(res.ToUpdate, row)
				continue
			case PolicySkipDuplicates:
				row.skip("already exists")
				res.ToSkip = append(res.ToSkip, row)
				continue
			default:
				slug = nextFreeSlug(slug, taken)
			}
		}

		// In-batch collision check, independent of the store conflict.
		if _, dup := assigned[slug]; dup {
			slug = nextFreeSlug(row.RequestedSlug, taken)
		}

		row.Slug = slug
		row.EntityID = uuid.New()
		assigned[slug] = struct{}{}
		res.ToInsert = append(res.ToInsert, row)
	}

	return res
}

// nextFreeSlug appends -1, -2, ... to base until the candidate is free.
// The first free integer wins, so the result is deterministic for a given
// row order.
func nextFreeSlug(base string, taken func(string) bool) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
