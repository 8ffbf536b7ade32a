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

// WriteStreams serializes a rekeyed, MNSI-annotated stream-network table
// to Arrow IPC stream bytes, in StreamSchema column order.
func WriteStreams(reaches []domain.StreamReach) ([]byte, error) {
	mem := memory.NewGoAllocator()

	linkB := array.NewInt64Builder(mem)
	dsB := array.NewInt64Builder(mem)
	usLeftB := array.NewInt64Builder(mem)
	usRightB := array.NewInt64Builder(mem)
	rootB := array.NewInt64Builder(mem)
	discB := array.NewInt32Builder(mem)
	finB := array.NewInt32Builder(mem)
	defer func() {
		for _, b := range []array.Builder{linkB, dsB, usLeftB, usRightB, rootB, discB, finB} {
			b.Release()
		}
	}()

	for _, r := range reaches {
		linkB.Append(r.LinkID)
		dsB.Append(r.DSLink)
		usLeftB.Append(r.USLeft)
		usRightB.Append(r.USRight)
		rootB.Append(r.RootID)
		discB.Append(r.Discover)
		finB.Append(r.Finish)
	}

	cols := []arrow.Array{
		linkB.NewArray(), dsB.NewArray(), usLeftB.NewArray(), usRightB.NewArray(),
		rootB.NewArray(), discB.NewArray(), finB.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	rec := array.NewRecord(StreamSchema, cols, int64(len(reaches)))
	defer rec.Release()

	return writeIPC(StreamSchema, rec)
}

// ReadStreams deserializes Arrow IPC stream bytes produced by WriteStreams
// (or an equivalent upstream writer) back into stream reaches.
func ReadStreams(data []byte) ([]domain.StreamReach, error) {
	mem := memory.NewGoAllocator()
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("table: opening stream reader: %w", err)
	}
	defer reader.Release()

	var out []domain.StreamReach
	for reader.Next() {
		rec := reader.Record()
		cols, err := columnsByName(rec, ColLinkID, ColDSLink, ColUSLeft, ColUSRight, ColRootID, ColDiscover, ColFinish)
		if err != nil {
			return nil, err
		}

		link := cols[ColLinkID].(*array.Int64)
		ds := cols[ColDSLink].(*array.Int64)
		usLeft := cols[ColUSLeft].(*array.Int64)
		usRight := cols[ColUSRight].(*array.Int64)
		root := cols[ColRootID].(*array.Int64)
		disc := cols[ColDiscover].(*array.Int32)
		fin := cols[ColFinish].(*array.Int32)

		for i := 0; i < int(rec.NumRows()); i++ {
			out = append(out, domain.StreamReach{
				LinkID:   link.Value(i),
				DSLink:   ds.Value(i),
				USLeft:   usLeft.Value(i),
				USRight:  usRight.Value(i),
				RootID:   root.Value(i),
				Discover: disc.Value(i),
				Finish:   fin.Value(i),
			})
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("table: reading stream records: %w", err)
	}

	return out, nil
}

func writeIPC(schema *arrow.Schema, rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithZstd())
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("table: writing record batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("table: closing ipc writer: %w", err)
	}
	return buf.Bytes(), nil
}

func columnsByName(rec arrow.Record, names ...string) (map[string]arrow.Array, error) {
	out := make(map[string]arrow.Array, len(names))
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	for i := 0; i < int(rec.NumCols()); i++ {
		name := rec.ColumnName(i)
		if want[name] {
			out[name] = rec.Column(i)
		}
	}
	for _, n := range names {
		if _, ok := out[n]; !ok {
			return nil, fmt.Errorf("table: missing required column %q", n)
		}
	}
	return out, nil
}
