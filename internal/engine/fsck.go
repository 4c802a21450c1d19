package engine

import (
	"context"
	"fmt"

	"github.com/omnifs/omnifs/internal/container"
)

// Violation is one consistency problem fsck found. It never mutates
// the container — it only reports.
type Violation struct {
	Kind  string
	Index uint32
	Detail string
}

// Fsck walks the metadata table and bitmap and reports violations of
// spec §8.1's invariants 4-6 (name uniqueness, chain soundness,
// parent closure), the runnable form of original_source's
// fs_validate. It never mutates state.
func (e *Engine) Fsck(ctx context.Context) ([]Violation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var violations []Violation

	root, ok := e.metadata.Get(container.RootIndex)
	if !ok || root.Type != container.EntryDirectory || root.ParentIndex != container.RootIndex {
		violations = append(violations, Violation{Kind: "root-invariant", Index: container.RootIndex, Detail: "slot 0 is not a valid self-parented root directory"})
	}

	seenNames := make(map[uint32]map[string]uint32) // parent -> name -> index
	reachable := make(map[uint32]bool)

	for idx := uint32(0); idx < e.metadata.MaxEntries(); idx++ {
		if err := ctx.Err(); err != nil {
			return violations, err
		}

		entry, ok := e.metadata.Get(idx)
		if !ok {
			continue
		}

		if idx != container.RootIndex {
			parent, pok := e.metadata.Get(entry.ParentIndex)
			if !pok || parent.Type != container.EntryDirectory {
				violations = append(violations, Violation{Kind: "parent-closure", Index: idx, Detail: fmt.Sprintf("parent_index %d is not a valid directory", entry.ParentIndex)})
			}
		}

		if seenNames[entry.ParentIndex] == nil {
			seenNames[entry.ParentIndex] = make(map[string]uint32)
		}
		if prev, dup := seenNames[entry.ParentIndex][entry.Name]; dup {
			violations = append(violations, Violation{Kind: "name-uniqueness", Index: idx, Detail: fmt.Sprintf("duplicates slot %d under parent %d", prev, entry.ParentIndex)})
		} else {
			seenNames[entry.ParentIndex][entry.Name] = idx
		}

		if entry.Type == container.EntryFile && entry.StartBlock != 0 {
			blockIdx := entry.StartBlock
			visitedInChain := make(map[uint32]bool)
			for blockIdx != 0 {
				if visitedInChain[blockIdx] {
					violations = append(violations, Violation{Kind: "chain-soundness", Index: idx, Detail: fmt.Sprintf("block %d revisited — cyclic chain", blockIdx)})
					break
				}
				visitedInChain[blockIdx] = true

				if reachable[blockIdx] {
					violations = append(violations, Violation{Kind: "chain-soundness", Index: idx, Detail: fmt.Sprintf("block %d shared with another file's chain", blockIdx)})
				}
				reachable[blockIdx] = true

				payload, next, err := e.chain.ReadBlockRaw(blockIdx)
				if err != nil {
					violations = append(violations, Violation{Kind: "chain-soundness", Index: idx, Detail: err.Error()})
					break
				}
				_ = payload
				blockIdx = next
			}
		}
	}

	for i := uint32(0); i < e.bitmap.Len(); i++ {
		if i == container.ReservedBlock {
			continue // never part of a chain; reserved so start_block==0 means "empty"
		}
		used := e.bitmap.IsUsed(i)
		if used && !reachable[i] {
			violations = append(violations, Violation{Kind: "chain-soundness", Index: i, Detail: "bitmap marks block used but no chain reaches it"})
		}
		if !used && reachable[i] {
			violations = append(violations, Violation{Kind: "chain-soundness", Index: i, Detail: "chain reaches block but bitmap marks it free"})
		}
	}

	return violations, nil
}
