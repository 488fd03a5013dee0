package source

import (
	"reflect"
	"testing"

	"github.com/user/sermon-catalog-go/internal/model"
)

func TestSwapExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{"Smith/Sermon.mp4", ".jpg", "Smith/Sermon.jpg"},
		{"Smith/Sermon.final.mp4", ".mp3", "Smith/Sermon.final.mp3"},
		{"Smith.v2/Sermon", ".vtt", "Smith.v2/Sermon.vtt"},
		{"Sermon.MP4", ".jpg", "Sermon.jpg"},
		{"", ".jpg", ""},
	}
	for _, tt := range tests {
		if got := SwapExt(tt.path, tt.ext); got != tt.want {
			t.Errorf("SwapExt(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("poster"); err == nil {
		t.Error("ParseKind(poster) should fail")
	}
}

func TestAssetPolicy_Candidates(t *testing.T) {
	r := NewStaticResolver("https://media.example.org/")

	tests := []struct {
		name  string
		video model.Video
		kind  Kind
		want  []string
	}{
		{
			name:  "video uses media path",
			video: model.Video{MediaPath: "Smith/Sermon.mp4"},
			kind:  KindVideo,
			want:  []string{"https://media.example.org/Smith/Sermon.mp4"},
		},
		{
			name:  "audio derived from media path",
			video: model.Video{MediaPath: "Smith/Sermon.mp4"},
			kind:  KindAudio,
			want:  []string{"https://media.example.org/Smith/Sermon.mp3"},
		},
		{
			name:  "explicit audio tried first",
			video: model.Video{MediaPath: "Smith/Sermon.mp4", AudioPath: "audio/Sermon.m4a"},
			kind:  KindAudio,
			want:  []string{"https://media.example.org/audio/Sermon.m4a", "https://media.example.org/Smith/Sermon.mp3"},
		},
		{
			name:  "duplicate explicit path collapsed",
			video: model.Video{MediaPath: "Smith/Sermon.mp4", SubtitlePath: "Smith/Sermon.vtt"},
			kind:  KindSubtitles,
			want:  []string{"https://media.example.org/Smith/Sermon.vtt"},
		},
		{
			name:  "thumbnail derived",
			video: model.Video{MediaPath: "Smith/Sermon.mp4"},
			kind:  KindThumbnail,
			want:  []string{"https://media.example.org/Smith/Sermon.jpg"},
		},
		{
			name:  "no media path",
			video: model.Video{},
			kind:  KindVideo,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultPolicy.Candidates(&tt.video, tt.kind, r)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssetPolicy_CandidatesUnresolvable(t *testing.T) {
	r := NewStaticResolver("")
	v := &model.Video{MediaPath: "Smith/Sermon.mp4"}
	if got := DefaultPolicy.Candidates(v, KindVideo, r); len(got) != 0 {
		t.Errorf("Candidates() with empty base = %v, want none", got)
	}
}

func TestDownloadName(t *testing.T) {
	v := &model.Video{ID: 7, MediaPath: "Smith/2020-01-05 Grace.mp4"}
	if got := DownloadName(v, KindAudio); got != "2020-01-05 Grace.mp3" {
		t.Errorf("DownloadName() = %q", got)
	}
	if got := DownloadName(&model.Video{ID: 7}, KindVideo); got != "video-7.mp4" {
		t.Errorf("DownloadName() without path = %q", got)
	}
}
