// Package extractor turns raw inbound payloads into draft offers, one parser
// per source. The set of registered parsers is what dispatch treats as
// available at runtime.
package extractor

import (
	"fmt"
	"sort"

	"github.com/amishk599/jobintake/internal/model"
)

// Parser extracts draft offers from a decoded HTML document.
type Parser interface {
	Parse(html []byte) ([]model.Draft, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(html []byte) ([]model.Draft, error)

func (f ParserFunc) Parse(html []byte) ([]model.Draft, error) { return f(html) }

// Registry maps sources to their parsers.
type Registry struct {
	parsers map[model.SourceName]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[model.SourceName]Parser)}
}

// Default registers the built-in parsers. enabled, when non-empty, restricts
// registration to the listed sources.
func Default(enabled ...model.SourceName) *Registry {
	all := map[model.SourceName]Parser{
		model.SourceLinkedIn:           ParserFunc(parseLinkedIn),
		model.SourceIndeed:             ParserFunc(parseIndeed),
		model.SourceWelcomeToTheJungle: welcomeToTheJungle,
		model.SourceHelloWork:          helloWork,
	}
	r := NewRegistry()
	for name, p := range all {
		if len(enabled) > 0 && !contains(enabled, name) {
			continue
		}
		r.Register(name, p)
	}
	return r
}

func contains(names []model.SourceName, n model.SourceName) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}

// Register adds or replaces the parser for name.
func (r *Registry) Register(name model.SourceName, p Parser) {
	r.parsers[name] = p
}

// HasParser reports whether a parser is registered for name.
func (r *Registry) HasParser(name model.SourceName) bool {
	_, ok := r.parsers[name]
	return ok
}

// Sources lists the sources with a parser, sorted by name.
func (r *Registry) Sources() []model.SourceName {
	out := make([]model.SourceName, 0, len(r.parsers))
	for n := range r.parsers {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Extract decodes payload (a raw RFC 822 message or a bare HTML document)
// and runs the parser registered for name.
func (r *Registry) Extract(name model.SourceName, payload []byte) ([]model.Draft, error) {
	p, ok := r.parsers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, model.ErrParserUnavailable)
	}
	html, err := decodeHTML(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	drafts, err := p.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", name, err)
	}
	return drafts, nil
}
