package postprocessors

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
	"github.com/custodia-labs/docqa/internal/postprocessors/metadata"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("pages", func(map[string]any) (driven.PostProcessor, error) {
		return metadata.NewPages(), nil
	})
	r.Register("headings", func(map[string]any) (driven.PostProcessor, error) {
		return metadata.NewHeadings(), nil
	})
	r.Register("timestamps", buildTimestamps)
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Soft character limit per chunk (default: 512)
//   - overlap (int): Overlap budget in characters, 0 disables (default: 50)
//   - max_chunks (int): Cap on chunks per document (default: 1000)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
		if n := getIntFromConfig(cfg, "max_chunks"); n > 0 {
			opts = append(opts, chunker.WithMaxChunks(n))
		}
	}

	return chunker.New(opts...), nil
}

// buildTimestamps creates the transcript processor.
// Supported config keys:
//   - chunk_size (int): Character budget per segment group
//   - max_gap (float): Seconds of silence that force a break
func buildTimestamps(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []metadata.TimestampsOption
	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, metadata.WithSegmentChunkSize(size))
		}
		if gap := getFloatFromConfig(cfg, "max_gap"); gap > 0 {
			opts = append(opts, metadata.WithMaxGap(gap))
		}
	}
	return metadata.NewTimestamps(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getFloatFromConfig(cfg map[string]any, key string) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
