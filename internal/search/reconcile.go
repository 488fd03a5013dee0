package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/user/sermon-catalog-go/internal/source"
	"github.com/user/sermon-catalog-go/internal/store"
)

// MediaPathFor derives the stored media path expected for a subtitle path:
// absolute URLs are reduced to their path, leading slashes are stripped and
// the extension becomes .mp4.
func MediaPathFor(subtitlePath string) string {
	p := strings.TrimSpace(subtitlePath)
	if p == "" {
		return ""
	}
	if source.IsAbsolute(p) {
		u, err := url.Parse(p)
		if err != nil {
			return ""
		}
		p = u.Path
	} else if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return source.SwapExt(p, ".mp4")
}

// Result is a hit with its reconciled video id; VideoID is nil when no
// stored media path matches.
type Result struct {
	Hit
	VideoID *uint
}

// MarshalJSON emits the service's fields plus videoId
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["videoId"] = r.VideoID
	return json.Marshal(out)
}

// Reconcile attaches video ids to hits. Paths are looked up in batches of
// store.MatchBatchSize; unmatched hits are kept with a nil id.
func Reconcile(ctx context.Context, st store.Store, hits []Hit) ([]Result, error) {
	results := make([]Result, len(hits))
	wanted := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))

	for i, h := range hits {
		results[i] = Result{Hit: h}
		p := MediaPathFor(h.SubtitlePath)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			wanted = append(wanted, p)
		}
	}

	for start := 0; start < len(wanted); start += store.MatchBatchSize {
		end := start + store.MatchBatchSize
		if end > len(wanted) {
			end = len(wanted)
		}
		batch := wanted[start:end]

		videos, err := st.FindByMediaPaths(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile hits: %w", err)
		}

		for i := range results {
			if results[i].VideoID != nil {
				continue
			}
			p := MediaPathFor(results[i].SubtitlePath)
			if p == "" {
				continue
			}
			// exact matches win over suffix matches
			var exact, suffix *uint
			for _, v := range videos {
				id := v.ID
				if v.MediaPath == p {
					exact = &id
					break
				}
				if suffix == nil && store.MatchesMediaPath(v.MediaPath, p) {
					suffix = &id
				}
			}
			if exact != nil {
				results[i].VideoID = exact
			} else if suffix != nil {
				results[i].VideoID = suffix
			}
		}
	}
	return results, nil
}
