package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/wikiwatershed/tdxmnsi/internal/config"
)

// ErrAmbiguousInputs is returned when a region's glob patterns match zero
// or more than one file, where exactly one is required.
var ErrAmbiguousInputs = errors.New("pipeline: ambiguous region input files")

// RegionFiles names the two input files a single region's run reads.
type RegionFiles struct {
	StreamnetPath string
	BasinsPath    string
}

// SelectRegionFiles resolves cfg's streamnet and basins glob patterns
// (rooted at dir) to exactly one file each. The original implementation's
// select_tdx_files assigned whichever match was seen last with no check;
// here zero or multiple matches fail with ErrAmbiguousInputs naming the
// pattern and match count.
func SelectRegionFiles(dir string, cfg config.RegionConfig) (RegionFiles, error) {
	streamnet, err := selectOne(dir, cfg.StreamnetPattern)
	if err != nil {
		return RegionFiles{}, fmt.Errorf("region %d streamnet: %w", cfg.Code, err)
	}
	basins, err := selectOne(dir, cfg.BasinsPattern)
	if err != nil {
		return RegionFiles{}, fmt.Errorf("region %d basins: %w", cfg.Code, err)
	}
	return RegionFiles{StreamnetPath: streamnet, BasinsPath: basins}, nil
}

func selectOne(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("pattern %q: %w", pattern, err)
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("%w: pattern %q matched %d files, want exactly 1", ErrAmbiguousInputs, pattern, len(matches))
	}
	return matches[0], nil
}
