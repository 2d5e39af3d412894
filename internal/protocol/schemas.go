package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemas = mustCompileSchemas()

var schemaFiles = map[string]string{
	TypeHello:   "hello.schema.json",
	TypeWelcome: "welcome.schema.json",
	TypeReset:   "reset.schema.json",
	TypeAct:     "act.schema.json",
	TypeObs:     "obs.schema.json",
	TypeError:   "error.schema.json",
}

func mustCompileSchemas() map[string]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	for _, name := range schemaFiles {
		b, err := schemaFS.ReadFile(path.Join("schemas", name))
		if err != nil {
			panic(err)
		}
		if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
			panic(err)
		}
	}
	out := make(map[string]*jsonschema.Schema, len(schemaFiles))
	for typ, name := range schemaFiles {
		out[typ] = c.MustCompile(name)
	}
	return out
}

// Validate checks a raw message against the schema for its type.
func Validate(typ string, raw []byte) error {
	s, ok := schemas[typ]
	if !ok {
		return fmt.Errorf("unknown message type %q", typ)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
