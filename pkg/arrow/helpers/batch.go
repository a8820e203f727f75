// Package helpers provides convenience functions for working with Arrow record batches.
package helpers

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/sandboxws/rowfilter/pkg/partition"
)

// ColumnIndex returns the index of a named column, or -1 if not found.
func ColumnIndex(schema *arrow.Schema, name string) int {
	indices := schema.FieldIndices(name)
	if len(indices) == 0 {
		return -1
	}
	return indices[0]
}

// Filter applies a boolean mask to a record batch, returning only rows where mask is true.
// The caller is responsible for releasing the returned Record.
func Filter(ctx context.Context, batch arrow.Record, mask arrow.Array) (arrow.Record, error) {
	result, err := compute.FilterRecordBatch(ctx, batch, mask, compute.DefaultFilterOptions())
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return result, nil
}

// Mask builds a boolean array of n values from keep, and counts the true
// values. The caller is responsible for releasing the returned array.
func Mask(alloc memory.Allocator, n int, keep func(i int) bool) (arrow.Array, int) {
	bldr := array.NewBooleanBuilder(alloc)
	defer bldr.Release()
	bldr.Reserve(n)

	kept := 0
	for i := 0; i < n; i++ {
		v := keep(i)
		if v {
			kept++
		}
		bldr.UnsafeAppend(v)
	}
	return bldr.NewArray(), kept
}

// Invert returns the negation of a mask built by Mask.
// The caller is responsible for releasing the returned array.
func Invert(alloc memory.Allocator, mask arrow.Array) arrow.Array {
	b := mask.(*array.Boolean)
	inv, _ := Mask(alloc, b.Len(), func(i int) bool { return !b.Value(i) })
	return inv
}

// SliceRanges returns zero-copy slices of batch covering the offsets of set.
// offset is the position of the batch's first row in the whole table. The
// caller is responsible for releasing the returned Records.
func SliceRanges(batch arrow.Record, offset uint64, set partition.Set) []arrow.Record {
	n := uint64(batch.NumRows())
	var out []arrow.Record
	for _, iv := range set.Intervals() {
		if iv.End <= offset {
			continue
		}
		if iv.Start >= offset+n {
			break
		}
		start := max(iv.Start, offset) - offset
		end := min(iv.End, offset+n) - offset
		out = append(out, batch.NewSlice(int64(start), int64(end)))
	}
	return out
}
