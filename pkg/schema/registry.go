package schema

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/go-go-golems/mindwell/pkg/conversation"
)

// Result is the outcome of validating a payload against its message type
// schema. A single invalid field fails the whole payload.
type Result struct {
	Valid  bool
	Errors []string
}

// Registry maps every declared message type to a precompiled JSON schema.
// Schemas are compiled eagerly at construction; an unregistered type is a
// configuration error surfaced by Covers at startup, not at call time.
type Registry struct {
	mu      sync.RWMutex
	schemas map[conversation.MessageType]*gojsonschema.Schema
}

// NewRegistry compiles the given schema documents. Compilation failures are
// returned immediately rather than deferred to validation time.
func NewRegistry(defs map[conversation.MessageType]string) (*Registry, error) {
	r := &Registry{
		schemas: make(map[conversation.MessageType]*gojsonschema.Schema, len(defs)),
	}
	for mt, doc := range defs {
		if !mt.Valid() {
			return nil, errors.Errorf("schema registered for unknown message type %q", mt)
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, errors.Wrapf(err, "compile schema for message type %q", mt)
		}
		r.schemas[mt] = compiled
	}
	return r, nil
}

// Covers verifies the registry maps every type in the enumeration. Call this
// at startup so a missing schema is a boot failure, not a runtime surprise.
func (r *Registry) Covers(all []conversation.MessageType) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []conversation.MessageType
	for _, mt := range all {
		if _, ok := r.schemas[mt]; !ok {
			missing = append(missing, mt)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("schema registry does not cover message types %v", missing)
	}
	return nil
}

// Validate checks a payload against the schema registered for its message
// type. A nil payload is validated as JSON null so types that allow empty
// payloads can say so in their schema. The returned error only signals an
// unregistered type, which Covers should have caught at startup.
func (r *Registry) Validate(mt conversation.MessageType, payload json.RawMessage) (*Result, error) {
	r.mu.RLock()
	compiled, ok := r.schemas[mt]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no schema registered for message type %q", mt)
	}

	doc := payload
	if len(doc) == 0 {
		doc = json.RawMessage("null")
	}

	res, err := compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		// Malformed JSON documents fail validation rather than erroring out.
		log.Debug().Err(err).Str("message_type", string(mt)).Msg("payload is not valid JSON")
		return &Result{Valid: false, Errors: []string{err.Error()}}, nil
	}
	if res.Valid() {
		return &Result{Valid: true}, nil
	}

	out := &Result{Valid: false}
	for _, desc := range res.Errors() {
		out.Errors = append(out.Errors, desc.String())
	}
	return out, nil
}
