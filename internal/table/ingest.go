package table

import (
	"strconv"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

// FromRawStreamRows builds stream reaches from the external vector-file
// reader's raw row output, keyed by the source column names. Columns not
// recognized below (notably WSNO and DSNODEID, which are redundant in the
// source data) are dropped rather than carried forward.
func FromRawStreamRows(rows []map[string]int64) ([]domain.StreamReach, error) {
	out := make([]domain.StreamReach, 0, len(rows))
	for i, row := range rows {
		link, ok := row[ColLinkID]
		if !ok {
			return nil, missingColumnErr(i, ColLinkID)
		}
		ds, ok := row[ColDSLink]
		if !ok {
			return nil, missingColumnErr(i, ColDSLink)
		}
		usLeft, ok := row[ColUSLeft]
		if !ok {
			return nil, missingColumnErr(i, ColUSLeft)
		}
		usRight, ok := row[ColUSRight]
		if !ok {
			return nil, missingColumnErr(i, ColUSRight)
		}

		out = append(out, domain.StreamReach{
			LinkID:  link,
			DSLink:  ds,
			USLeft:  usLeft,
			USRight: usRight,
		})
	}
	return out, nil
}

// FromRawBasinRows builds basins from the external vector-file reader's
// raw basin rows, renaming the source synonym field "streamID" to
// link_id on ingest.
func FromRawBasinRows(rows []map[string]int64) ([]domain.Basin, error) {
	const streamIDSynonym = "streamID"

	out := make([]domain.Basin, 0, len(rows))
	for i, row := range rows {
		link, ok := row[ColLinkID]
		if !ok {
			link, ok = row[streamIDSynonym]
		}
		if !ok {
			return nil, missingColumnErr(i, ColLinkID)
		}
		out = append(out, domain.Basin{LinkID: link, DissolveRootID: domain.DissolveRootNone})
	}
	return out, nil
}

func missingColumnErr(rowIndex int, column string) error {
	return &MissingColumnError{RowIndex: rowIndex, Column: column}
}

// MissingColumnError reports a required column absent from a raw input
// row. Surfaced by the pipeline as a SchemaMismatch condition.
type MissingColumnError struct {
	RowIndex int
	Column   string
}

func (e *MissingColumnError) Error() string {
	return "table: row " + strconv.Itoa(e.RowIndex) + " missing required column " + e.Column
}
