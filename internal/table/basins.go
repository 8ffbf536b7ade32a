package table

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// WriteBasins serializes a joined, dissolve-planned basin table to Arrow
// IPC stream bytes, in BasinSchema column order. DISSOLVE_ROOT_ID is
// written as null for ungrouped basins rather than the internal
// domain.DissolveRootNone sentinel, matching the nullable wire contract.
func WriteBasins(basins []domain.Basin) ([]byte, error) {
	mem := memory.NewGoAllocator()

	linkB := array.NewInt64Builder(mem)
	rootB := array.NewInt64Builder(mem)
	discB := array.NewInt32Builder(mem)
	finB := array.NewInt32Builder(mem)
	dissolveB := array.NewInt64Builder(mem)
	countB := array.NewInt32Builder(mem)
	defer func() {
		for _, b := range []array.Builder{linkB, rootB, discB, finB, dissolveB, countB} {
			b.Release()
		}
	}()

	for _, b := range basins {
		linkB.Append(b.LinkID)
		rootB.Append(b.RootID)
		discB.Append(b.Discover)
		finB.Append(b.Finish)
		if b.DissolveRootID == domain.DissolveRootNone {
			dissolveB.AppendNull()
		} else {
			dissolveB.Append(b.DissolveRootID)
		}
		countB.Append(b.ElementCount)
	}

	cols := []arrow.Array{
		linkB.NewArray(), rootB.NewArray(), discB.NewArray(), finB.NewArray(),
		dissolveB.NewArray(), countB.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	rec := array.NewRecord(BasinSchema, cols, int64(len(basins)))
	defer rec.Release()

	return writeIPC(BasinSchema, rec)
}

// ReadBasins deserializes Arrow IPC stream bytes produced by WriteBasins
// back into basins. A null DISSOLVE_ROOT_ID becomes domain.DissolveRootNone.
func ReadBasins(data []byte) ([]domain.Basin, error) {
	mem := memory.NewGoAllocator()
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("table: opening basin reader: %w", err)
	}
	defer reader.Release()

	var out []domain.Basin
	for reader.Next() {
		rec := reader.Record()
		cols, err := columnsByName(rec, ColLinkID, ColRootID, ColDiscover, ColFinish, ColDissolveRootID, ColElementCount)
		if err != nil {
			return nil, err
		}

		link := cols[ColLinkID].(*array.Int64)
		root := cols[ColRootID].(*array.Int64)
		disc := cols[ColDiscover].(*array.Int32)
		fin := cols[ColFinish].(*array.Int32)
		dissolve := cols[ColDissolveRootID].(*array.Int64)
		count := cols[ColElementCount].(*array.Int32)

		for i := 0; i < int(rec.NumRows()); i++ {
			dissolveRoot := domain.DissolveRootNone
			if !dissolve.IsNull(i) {
				dissolveRoot = dissolve.Value(i)
			}
			out = append(out, domain.Basin{
				LinkID:         link.Value(i),
				RootID:         root.Value(i),
				Discover:       disc.Value(i),
				Finish:         fin.Value(i),
				DissolveRootID: dissolveRoot,
				ElementCount:   count.Value(i),
			})
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("table: reading basin records: %w", err)
	}

	return out, nil
}
