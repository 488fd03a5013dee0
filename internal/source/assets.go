package source

import (
	"fmt"
	"path"
	"strings"

	"github.com/user/sermon-catalog-go/internal/model"
)

// Kind is a logical media kind served for a video
type Kind string

const (
	KindVideo     Kind = "video"
	KindAudio     Kind = "audio"
	KindThumbnail Kind = "thumbnail"
	KindSubtitles Kind = "subtitles"
)

// Kinds lists every media kind in display order
var Kinds = []Kind{KindVideo, KindAudio, KindThumbnail, KindSubtitles}

// ParseKind validates a kind taken from a URL
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindVideo, KindAudio, KindThumbnail, KindSubtitles:
		return k, nil
	}
	return "", fmt.Errorf("unknown media kind: %q", s)
}

// ContentType is used when the upstream omits Content-Type
func (k Kind) ContentType() string {
	switch k {
	case KindAudio:
		return "audio/mpeg"
	case KindThumbnail:
		return "image/jpeg"
	case KindSubtitles:
		return "text/vtt; charset=utf-8"
	default:
		return "video/mp4"
	}
}

// Ext is the extension derived paths of this kind carry
func (k Kind) Ext() string {
	switch k {
	case KindAudio:
		return ".mp3"
	case KindThumbnail:
		return ".jpg"
	case KindSubtitles:
		return ".vtt"
	default:
		return ".mp4"
	}
}

// SwapExt replaces the final extension of p with ext. A path without an
// extension gets ext appended. Dots in directory names are ignored.
func SwapExt(p, ext string) string {
	if p == "" {
		return ""
	}
	dir, file := path.Split(p)
	if i := strings.LastIndex(file, "."); i > 0 {
		file = file[:i]
	}
	return dir + file + ext
}

// Rule is one step of a fallback policy: it picks a stored path for v
type Rule struct {
	Name string
	Path func(v *model.Video) string
}

// AssetPolicy lists, per kind, the ordered rules that produce candidate paths
type AssetPolicy map[Kind][]Rule

// DefaultPolicy prefers the explicit column and falls back to an extension
// swap on the primary media path.
var DefaultPolicy = AssetPolicy{
	KindVideo: {
		{Name: "media_path", Path: func(v *model.Video) string { return v.MediaPath }},
	},
	KindAudio: {
		{Name: "audio_path", Path: func(v *model.Video) string { return v.AudioPath }},
		{Name: "media_path_mp3", Path: func(v *model.Video) string { return SwapExt(v.MediaPath, ".mp3") }},
	},
	KindSubtitles: {
		{Name: "subtitle_path", Path: func(v *model.Video) string { return v.SubtitlePath }},
		{Name: "media_path_vtt", Path: func(v *model.Video) string { return SwapExt(v.MediaPath, ".vtt") }},
	},
	KindThumbnail: {
		{Name: "thumbnail_path", Path: func(v *model.Video) string { return v.ThumbnailPath }},
		{Name: "media_path_jpg", Path: func(v *model.Video) string { return SwapExt(v.MediaPath, ".jpg") }},
	},
}

// Paths returns the candidate stored paths for kind, in rule order,
// with empty and duplicate entries removed.
func (p AssetPolicy) Paths(v *model.Video, kind Kind) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, rule := range p[kind] {
		s := strings.TrimSpace(rule.Path(v))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Candidates resolves the candidate paths into upstream URLs, dropping those
// the resolver cannot address.
func (p AssetPolicy) Candidates(v *model.Video, kind Kind, r Resolver) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, s := range p.Paths(v, kind) {
		u := r.Resolve(s)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Primary returns the first resolvable URL for kind, or ""
func (p AssetPolicy) Primary(v *model.Video, kind Kind, r Resolver) string {
	if c := p.Candidates(v, kind, r); len(c) > 0 {
		return c[0]
	}
	return ""
}

// DownloadName is the filename offered when the upstream URL has none
func DownloadName(v *model.Video, kind Kind) string {
	base := path.Base(v.MediaPath)
	if base == "." || base == "/" || base == "" {
		base = fmt.Sprintf("video-%d", v.ID)
	}
	return SwapExt(base, kind.Ext())
}

// ResolvedURLs returns the primary absolute upstream URL for every kind
func (p AssetPolicy) ResolvedURLs(v *model.Video, r Resolver) model.MediaURLs {
	return model.MediaURLs{
		Stream:    p.Primary(v, KindVideo, r),
		Audio:     p.Primary(v, KindAudio, r),
		Thumbnail: p.Primary(v, KindThumbnail, r),
		Subtitles: p.Primary(v, KindSubtitles, r),
	}
}
