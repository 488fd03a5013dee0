package source

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/user/sermon-catalog-go/internal/config"
)

// Resolver maps a stored relative media path to an absolute upstream URL.
// Implementations never perform network calls and return "" when the path
// cannot be resolved.
type Resolver interface {
	Resolve(p string) string
	ResolveThumbnail(p string) string
}

// New selects the resolver strategy configured by MEDIA_BACKEND
func New(cfg *config.MediaConfig) Resolver {
	switch cfg.Backend {
	case "s3":
		return NewObjectStorageResolver(ObjectStorageOptions{
			Endpoint:   cfg.S3Endpoint,
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PresignTTL: cfg.S3PresignTTL,
			PathStyle:  cfg.S3PathStyle,
		})
	default:
		return NewStaticResolver(cfg.BaseURL)
	}
}

// IsAbsolute reports whether p is already an absolute http(s) URL
func IsAbsolute(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// StaticResolver joins relative paths onto a fixed origin prefix
type StaticResolver struct {
	base string
}

// NewStaticResolver normalizes base to end with a slash.
// An unparseable or non-http base yields a resolver that resolves nothing.
func NewStaticResolver(base string) *StaticResolver {
	base = strings.TrimSpace(base)
	u, err := url.Parse(base)
	if base == "" || err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		if base != "" {
			log.Warn().Str("base", base).Msg("Invalid media base URL, media will be unavailable")
		}
		return &StaticResolver{}
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &StaticResolver{base: base}
}

// Resolve returns the absolute URL for p
func (r *StaticResolver) Resolve(p string) string {
	if p == "" {
		return ""
	}
	if IsAbsolute(p) {
		return p
	}
	if r.base == "" {
		return ""
	}
	return r.base + escapePath(strings.TrimLeft(p, "/"))
}

// ResolveThumbnail resolves the .jpg sibling of p
func (r *StaticResolver) ResolveThumbnail(p string) string {
	if p == "" {
		return ""
	}
	return r.Resolve(SwapExt(p, ".jpg"))
}

// ObjectStorageOptions configures an ObjectStorageResolver
type ObjectStorageOptions struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
	PathStyle  bool
}

// ObjectStorageResolver addresses objects by endpoint and bucket.
// With credentials configured it returns presigned GET URLs.
type ObjectStorageResolver struct {
	endpoint  *url.URL
	bucket    string
	pathStyle bool
	presigner *s3.PresignClient
	ttl       time.Duration
}

// NewObjectStorageResolver creates an object storage resolver.
// Misconfiguration leaves the resolver empty instead of failing.
func NewObjectStorageResolver(opts ObjectStorageOptions) *ObjectStorageResolver {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"))
	if err != nil || u.Host == "" || opts.Bucket == "" {
		log.Warn().Str("endpoint", opts.Endpoint).Str("bucket", opts.Bucket).
			Msg("Invalid object storage configuration, media will be unavailable")
		return &ObjectStorageResolver{}
	}

	r := &ObjectStorageResolver{
		endpoint:  u,
		bucket:    opts.Bucket,
		pathStyle: opts.PathStyle,
		ttl:       opts.PresignTTL,
	}
	if r.ttl <= 0 {
		r.ttl = time.Hour
	}

	if opts.AccessKey != "" && opts.SecretKey != "" {
		region := opts.Region
		if region == "" {
			region = "us-east-1"
		}
		client := s3.New(s3.Options{
			Region:       region,
			Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
			BaseEndpoint: aws.String(u.String()),
			UsePathStyle: opts.PathStyle,
		})
		r.presigner = s3.NewPresignClient(client, s3.WithPresignExpires(r.ttl))
	}
	return r
}

// Resolve returns the object URL for key p
func (r *ObjectStorageResolver) Resolve(p string) string {
	if p == "" {
		return ""
	}
	if IsAbsolute(p) {
		return p
	}
	if r.endpoint == nil {
		return ""
	}
	key := strings.TrimLeft(p, "/")

	if r.presigner != nil {
		req, err := r.presigner.PresignGetObject(context.Background(), &s3.GetObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to presign object URL")
			return ""
		}
		return req.URL
	}

	if r.pathStyle {
		return r.endpoint.String() + "/" + r.bucket + "/" + escapePath(key)
	}
	return r.endpoint.Scheme + "://" + r.bucket + "." + r.endpoint.Host + "/" + escapePath(key)
}

// ResolveThumbnail resolves the .jpg sibling of p
func (r *ObjectStorageResolver) ResolveThumbnail(p string) string {
	if p == "" {
		return ""
	}
	return r.Resolve(SwapExt(p, ".jpg"))
}

// escapePath percent-encodes each segment while keeping the separators
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Basename returns the percent-decoded last path segment of rawURL
func Basename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.EscapedPath())
	if base == "." || base == "/" {
		return ""
	}
	if decoded, err := url.PathUnescape(base); err == nil {
		return decoded
	}
	return base
}
