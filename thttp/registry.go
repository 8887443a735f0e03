// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Query-farm/thttp/mediatype"
)

// Registry is the immutable table of serialization formats known to a
// process. Build it once at startup; it is safe for concurrent use.
type Registry struct {
	formats        []*SerializationFormat
	byID           map[string]*SerializationFormat
	aliases        map[string]string
	defaultFormat  *SerializationFormat
	containerTypes []mediatype.MediaType
}

// RegistryOption configures [NewRegistry].
type RegistryOption func(*registryConfig)

type registryConfig struct {
	aliases        map[string]string
	defaultID      string
	containerTypes []mediatype.MediaType
}

// WithAliases maps legacy identifiers to canonical format identifiers.
// Aliases are resolved by [Registry.Lookup]; they are not separate formats.
func WithAliases(aliases map[string]string) RegistryOption {
	return func(c *registryConfig) {
		for alias, id := range aliases {
			c.aliases[alias] = id
		}
	}
}

// WithDefaultFormat designates the format used when a client address has no
// format prefix. Defaults to the first registered format.
func WithDefaultFormat(id string) RegistryOption {
	return func(c *registryConfig) { c.defaultID = id }
}

// WithContainerTypes declares the generic media types of the protocol
// family, such as application/x-thrift without a protocol parameter. A
// Content-Type of a container type selects the endpoint default format.
func WithContainerTypes(mts ...mediatype.MediaType) RegistryOption {
	return func(c *registryConfig) { c.containerTypes = append(c.containerTypes, mts...) }
}

// NewRegistry builds a registry from formats in the given order. It fails
// with a *RegistryError matching [ErrFormatCollision] when two formats share
// an identifier or a media type, or an alias shadows a format.
func NewRegistry(formats []*SerializationFormat, opts ...RegistryOption) (*Registry, error) {
	cfg := registryConfig{aliases: make(map[string]string)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(formats) == 0 {
		return nil, &RegistryError{Reason: "no formats registered"}
	}

	r := &Registry{
		byID:           make(map[string]*SerializationFormat, len(formats)),
		aliases:        make(map[string]string, len(cfg.aliases)),
		containerTypes: append([]mediatype.MediaType(nil), cfg.containerTypes...),
	}
	for _, f := range formats {
		if f == nil {
			return nil, &RegistryError{Reason: "nil format"}
		}
		if _, exists := r.byID[f.id]; exists {
			return nil, &RegistryError{ID: f.id, Reason: "identifier already registered"}
		}
		for _, other := range r.formats {
			if mt, clash := f.overlaps(other); clash {
				return nil, &RegistryError{ID: f.id, MediaType: mt.String(),
					Reason: fmt.Sprintf("media type already recognized by %q", other.id)}
			}
		}
		r.byID[f.id] = f
		r.formats = append(r.formats, f)
	}

	for alias, id := range cfg.aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		id = strings.ToLower(strings.TrimSpace(id))
		if _, exists := r.byID[alias]; exists {
			return nil, &RegistryError{ID: alias, Reason: "alias shadows a registered format"}
		}
		if _, exists := r.byID[id]; !exists {
			return nil, &RegistryError{ID: alias, Reason: fmt.Sprintf("alias target %q is not registered", id)}
		}
		if _, dup := r.aliases[alias]; dup {
			return nil, &RegistryError{ID: alias, Reason: "alias registered twice"}
		}
		r.aliases[alias] = id
	}

	r.defaultFormat = r.formats[0]
	if cfg.defaultID != "" {
		f, ok := r.Lookup(cfg.defaultID)
		if !ok {
			return nil, &RegistryError{ID: cfg.defaultID, Reason: "default format is not registered"}
		}
		r.defaultFormat = f
	}

	for _, ct := range r.containerTypes {
		if f, ok := r.Find(ct); ok {
			return nil, &RegistryError{ID: f.id, MediaType: ct.String(), Reason: "container type is recognized by a format"}
		}
	}
	return r, nil
}

// MustRegistry is like [NewRegistry] but panics on error. Registry
// construction happens at startup, where a collision is fatal.
func MustRegistry(formats []*SerializationFormat, opts ...RegistryOption) *Registry {
	r, err := NewRegistry(formats, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Find returns the format announced by mt. No match is not an error.
func (r *Registry) Find(mt mediatype.MediaType) (*SerializationFormat, bool) {
	for _, f := range r.formats {
		if f.Matches(mt) {
			return f, true
		}
	}
	return nil, false
}

// Lookup returns the format with the given identifier or alias. The
// identifier is matched case-insensitively.
func (r *Registry) Lookup(id string) (*SerializationFormat, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if f, ok := r.byID[id]; ok {
		return f, true
	}
	if canonical, ok := r.aliases[id]; ok {
		return r.byID[canonical], true
	}
	return nil, false
}

// KnownFormats returns the canonical identifiers in registration order.
func (r *Registry) KnownFormats() []string {
	ids := make([]string, len(r.formats))
	for i, f := range r.formats {
		ids[i] = f.id
	}
	return ids
}

// Formats returns the registered formats in registration order.
func (r *Registry) Formats() []*SerializationFormat {
	return append([]*SerializationFormat(nil), r.formats...)
}

// Aliases returns a copy of the alias table, alias to canonical identifier.
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// AliasNames returns the aliases sorted by name.
func (r *Registry) AliasNames() []string {
	names := make([]string, 0, len(r.aliases))
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// Default returns the designated default format.
func (r *Registry) Default() *SerializationFormat { return r.defaultFormat }

// IsContainerType reports whether mt has the type and subtype of one of the
// registry's container types. Parameters are ignored.
func (r *Registry) IsContainerType(mt mediatype.MediaType) bool {
	for _, ct := range r.containerTypes {
		if ct.SameType(mt) {
			return true
		}
	}
	return false
}
