package serialize

import (
	"github.com/screenlab/reports/pkg/query"
	"github.com/screenlab/reports/pkg/schema"
)

// ImageResolver maps a stored image reference to a resolvable URI.
// "Not found" is an expected outcome, not an error.
type ImageResolver interface {
	Resolve(ref string) (uri string, ok bool)
}

// ImageResolverFunc adapts a function to the ImageResolver interface
type ImageResolverFunc func(ref string) (string, bool)

func (f ImageResolverFunc) Resolve(ref string) (string, bool) {
	return f(ref)
}

// imagePass resolves image-typed field values against a resolver;
// references that fail to resolve are nulled out so a missing image
// never fails the row.
type imagePass struct {
	source    RowSource
	imageKeys []string
	resolver  ImageResolver
}

// NewImagePass wraps source with image reference resolution for every
// image-typed field. With no image fields or a nil resolver the source
// is returned unwrapped.
func NewImagePass(source RowSource, fields []*schema.FieldDescriptor, resolver ImageResolver) RowSource {
	if resolver == nil {
		return source
	}
	var keys []string
	for _, f := range fields {
		if f.IsImage() {
			keys = append(keys, f.Key)
		}
	}
	if len(keys) == 0 {
		return source
	}
	return &imagePass{source: source, imageKeys: keys, resolver: resolver}
}

func (p *imagePass) Next() bool {
	if !p.source.Next() {
		return false
	}
	row := p.source.Row()
	for _, key := range p.imageKeys {
		ref := stringValue(row[key])
		if ref == "" {
			row[key] = nil
			continue
		}
		uri, ok := p.resolver.Resolve(ref)
		if !ok {
			row[key] = nil
			continue
		}
		row[key] = uri
	}
	return true
}

func (p *imagePass) Row() query.RowMap {
	return p.source.Row()
}

func (p *imagePass) Err() error {
	return p.source.Err()
}

func (p *imagePass) Close() error {
	return p.source.Close()
}
