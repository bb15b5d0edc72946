package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	TypeHello:       "hello.schema.json",
	TypePlace:       "place.schema.json",
	TypeBulldoze:    "bulldoze.schema.json",
	TypeSpawnWorker: "spawn_worker.schema.json",
	TypeCancelAll:   "cancel_all.schema.json",
	TypeSubscribe:   "subscribe.schema.json",
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() {
	schemas = make(map[string]*jsonschema.Schema, len(schemaFiles))
	for typ, name := range schemaFiles {
		raw, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			schemasErr = err
			return
		}
		s, err := jsonschema.CompileString(name, string(raw))
		if err != nil {
			schemasErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		schemas[typ] = s
	}
}

// Validate checks an inbound message against the schema for its type. Types without a
// schema are rejected.
func Validate(raw []byte) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("message is not an object")
	}
	typ, _ := obj["type"].(string)
	s, ok := schemas[typ]
	if !ok {
		return fmt.Errorf("no schema for message type %q", typ)
	}
	return s.Validate(v)
}
