package source

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/user/sermon-catalog-go/internal/config"
)

func TestStaticResolver_Resolve(t *testing.T) {
	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{"joins relative path", "https://media.example.org/files", "Smith/Sermon.mp4", "https://media.example.org/files/Smith/Sermon.mp4"},
		{"base with trailing slash", "https://media.example.org/files/", "Smith/Sermon.mp4", "https://media.example.org/files/Smith/Sermon.mp4"},
		{"strips leading slash", "https://media.example.org/", "/Smith/Sermon.mp4", "https://media.example.org/Smith/Sermon.mp4"},
		{"absolute url unchanged", "https://media.example.org/", "http://cdn.example.org/x.mp4", "http://cdn.example.org/x.mp4"},
		{"escapes spaces", "https://media.example.org/", "John Smith/2020-01-05 Grace.mp4", "https://media.example.org/John%20Smith/2020-01-05%20Grace.mp4"},
		{"empty path", "https://media.example.org/", "", ""},
		{"empty base", "", "Smith/Sermon.mp4", ""},
		{"invalid base", "not a url", "Smith/Sermon.mp4", ""},
		{"non http base", "ftp://media.example.org/", "Smith/Sermon.mp4", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStaticResolver(tt.base)
			if got := r.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestStaticResolver_ResolveThumbnail(t *testing.T) {
	r := NewStaticResolver("https://media.example.org")

	if got := r.ResolveThumbnail("Smith/Sermon.mp4"); got != "https://media.example.org/Smith/Sermon.jpg" {
		t.Errorf("ResolveThumbnail() = %q", got)
	}
	if got := r.ResolveThumbnail(""); got != "" {
		t.Errorf("ResolveThumbnail(\"\") = %q, want empty", got)
	}
}

func TestObjectStorageResolver_Unsigned(t *testing.T) {
	tests := []struct {
		name      string
		pathStyle bool
		want      string
	}{
		{"path style", true, "https://s3.example.org/sermons/Smith/Sermon.mp4"},
		{"virtual host", false, "https://sermons.s3.example.org/Smith/Sermon.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewObjectStorageResolver(ObjectStorageOptions{
				Endpoint:  "https://s3.example.org/",
				Bucket:    "sermons",
				PathStyle: tt.pathStyle,
			})
			if got := r.Resolve("/Smith/Sermon.mp4"); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectStorageResolver_Presigned(t *testing.T) {
	r := NewObjectStorageResolver(ObjectStorageOptions{
		Endpoint:   "https://s3.example.org",
		Bucket:     "sermons",
		Region:     "eu-central-1",
		AccessKey:  "AKIDEXAMPLE",
		SecretKey:  "secret",
		PresignTTL: 10 * time.Minute,
		PathStyle:  true,
	})

	got := r.Resolve("Smith/Sermon.mp4")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("presigned URL does not parse: %v", err)
	}
	if u.Host != "s3.example.org" {
		t.Errorf("host = %q, want s3.example.org", u.Host)
	}
	if !strings.HasPrefix(u.Path, "/sermons/Smith/Sermon.mp4") {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("X-Amz-Signature") == "" {
		t.Error("missing X-Amz-Signature")
	}
	if q.Get("X-Amz-Expires") != "600" {
		t.Errorf("X-Amz-Expires = %q, want 600", q.Get("X-Amz-Expires"))
	}
}

func TestObjectStorageResolver_Misconfigured(t *testing.T) {
	r := NewObjectStorageResolver(ObjectStorageOptions{Endpoint: "https://s3.example.org"})
	if got := r.Resolve("Smith/Sermon.mp4"); got != "" {
		t.Errorf("Resolve() without bucket = %q, want empty", got)
	}
	if got := r.Resolve("https://cdn.example.org/a.mp4"); got != "https://cdn.example.org/a.mp4" {
		t.Errorf("absolute URL changed: %q", got)
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	if _, ok := New(&config.MediaConfig{Backend: "static", BaseURL: "https://a.example"}).(*StaticResolver); !ok {
		t.Error("static backend did not produce StaticResolver")
	}
	if _, ok := New(&config.MediaConfig{Backend: "s3", S3Endpoint: "https://s3.example", S3Bucket: "b"}).(*ObjectStorageResolver); !ok {
		t.Error("s3 backend did not produce ObjectStorageResolver")
	}
}

func TestBasename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://media.example.org/Smith/2020-01-05%20Grace.mp4", "2020-01-05 Grace.mp4"},
		{"https://media.example.org/a/b.vtt?X-Amz-Signature=abc", "b.vtt"},
		{"https://media.example.org/a/100%25.mp3", "100%.mp3"},
		{"https://media.example.org/", ""},
	}
	for _, tt := range tests {
		if got := Basename(tt.in); got != tt.want {
			t.Errorf("Basename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Property: resolving a thumbnail yields the .jpg sibling of the original
// basename, whatever the original extension.
func TestProperty_ThumbnailRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	const base = "https://media.example.org/files/"
	r := NewStaticResolver(base)

	segmentGen := gen.Identifier()
	extGen := gen.OneConstOf(".mp4", ".mov", ".webm", ".m4v", "")

	properties.Property("thumbnail is a .jpg sibling", prop.ForAll(
		func(dir, name, ext string) bool {
			p := dir + "/" + name + ext
			resolved := r.Resolve(p)
			thumb := r.ResolveThumbnail(p)
			return strings.HasPrefix(resolved, base) &&
				thumb == base+dir+"/"+name+".jpg"
		},
		segmentGen,
		segmentGen,
		extGen,
	))

	properties.TestingRun(t)
}
