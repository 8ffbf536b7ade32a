// Package table implements the struct-of-arrays representation the core
// algorithms read and write: a registry of logical column names (the wire
// contract in spec.md §6) bound to typed Arrow arrays, with IPC
// serialization for the local/S3 output sinks in internal/storage.
//
// Grounded on the teacher's internal/arrowutil (Arrow IPC decode to row
// maps); this package adds the write side and a fixed, typed schema in
// place of arrowutil's dynamic map[string]interface{} rows, since the
// column set here is small and known at compile time.
package table

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Column names are part of the external interface: downstream consumers
// read these names literally. Do not rename without a migration.
const (
	ColLinkID   = "LINKNO"
	ColDSLink   = "DSLINKNO"
	ColUSLeft   = "USLINKNO1"
	ColUSRight  = "USLINKNO2"
	ColRootID   = "ROOT_ID"
	ColDiscover = "DISCOVER_TIME"
	ColFinish   = "FINISH_TIME"

	ColDissolveRootID = "DISSOLVE_ROOT_ID"
	ColElementCount   = "ELEMENT_COUNT"

	// colWSNO and colDSNODEID are dropped on ingest if present: redundant
	// with the columns above, per the schema/storage contract.
	colWSNO     = "WSNO"
	colDSNODEID = "DSNODEID"
)

// droppedStreamColumns lists source columns the stream-network reader
// discards if present in the input file.
var droppedStreamColumns = map[string]bool{
	colWSNO:     true,
	colDSNODEID: true,
}

// StreamSchema is the Arrow schema for a rekeyed, MNSI-annotated
// stream-network table (TDX_streamnet_<region>_01).
var StreamSchema = arrow.NewSchema([]arrow.Field{
	{Name: ColLinkID, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColDSLink, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColUSLeft, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColUSRight, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColRootID, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColDiscover, Type: arrow.PrimitiveTypes.Int32},
	{Name: ColFinish, Type: arrow.PrimitiveTypes.Int32},
}, nil)

// BasinSchema is the Arrow schema for a joined, dissolve-planned basin
// table (TDX_streamreach_basins_mnsi_<region>_01). ELEMENT_COUNT is
// nullable: it is a working value the planner produces and callers may
// drop on write.
var BasinSchema = arrow.NewSchema([]arrow.Field{
	{Name: ColLinkID, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColRootID, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColDiscover, Type: arrow.PrimitiveTypes.Int32},
	{Name: ColFinish, Type: arrow.PrimitiveTypes.Int32},
	{Name: ColDissolveRootID, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: ColElementCount, Type: arrow.PrimitiveTypes.Int32, Nullable: true},
}, nil)
