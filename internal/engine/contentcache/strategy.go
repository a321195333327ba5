package contentcache

import (
	"context"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// strategy materializes one kind of cache source.
type strategy interface {
	// id returns the part of the cache key that follows "owner:kind:".
	id(src domain.CacheSource) string
	load(ctx context.Context, src domain.CacheSource) (string, error)
}

type fileStrategy struct {
	reader ports.ContentReader
}

func (s fileStrategy) id(src domain.CacheSource) string { return src.Path }

func (s fileStrategy) load(_ context.Context, src domain.CacheSource) (string, error) {
	if src.Path == "" {
		return "", missingField(src, "path")
	}
	return s.reader.ReadFile(src.Path)
}

type globStrategy struct {
	reader ports.ContentReader
}

func (s globStrategy) id(src domain.CacheSource) string { return src.Pattern }

// load concatenates every match in path order, each preceded by a "// File:" header.
func (s globStrategy) load(_ context.Context, src domain.CacheSource) (string, error) {
	if src.Pattern == "" {
		return "", missingField(src, "pattern")
	}
	files, err := s.reader.Glob(src.Pattern)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(files))
	for _, f := range files {
		body, err := s.reader.ReadFile(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, "// File: "+f+"\n"+body)
	}
	return strings.Join(parts, "\n\n"), nil
}

type externalStrategy struct {
	fetcher ports.ExternalFetcher
}

func (s externalStrategy) id(src domain.CacheSource) string { return src.URI }

func (s externalStrategy) load(ctx context.Context, src domain.CacheSource) (string, error) {
	ref, err := s.reference(src)
	if err != nil {
		return "", err
	}
	return s.fetcher.Fetch(ctx, ref)
}

func (s externalStrategy) reference(src domain.CacheSource) (domain.ExternalReference, error) {
	ref, err := domain.ParseReference(src.URI)
	if err != nil {
		return ref, err
	}
	if s.fetcher == nil || !s.fetcher.Available() {
		return ref, domain.Annotate(domain.ErrIntegrationUnavailable, "uri", src.URI)
	}
	return ref, nil
}

type inlineStrategy struct{}

// id hashes the content so identical inline bodies share one entry.
func (inlineStrategy) id(src domain.CacheSource) string {
	return strconv.FormatUint(xxhash.Sum64String(src.Content), 16)
}

func (inlineStrategy) load(_ context.Context, src domain.CacheSource) (string, error) {
	return src.Content, nil
}

func missingField(src domain.CacheSource, field string) error {
	err := zerr.Wrap(domain.ErrSourceReadFailed, string(src.Type)+" source has no "+field)
	return zerr.With(err, "label", src.Label)
}
