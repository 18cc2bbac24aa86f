// Command schema-generator writes the JSON Schemas for peersync.yml and its
// logging section.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/logging"
	"github.com/invopop/jsonschema"
)

func main() {
	outDir := flag.String("out", "schema", "Directory the schema files are written to")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	configSchema, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating config schema: %v", err)
	}
	write(filepath.Join(*outDir, "peersync.schema.json"), configSchema)

	loggingSchema, err := generateLoggingSchema()
	if err != nil {
		log.Fatalf("Error generating logging schema: %v", err)
	}
	write(filepath.Join(*outDir, "logging.schema.json"), loggingSchema)
}

func generateLoggingSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}
	s := r.Reflect(&logging.Config{})
	s.Title = "peersync logging section"
	s.Version = "http://json-schema.org/draft-07/schema#"
	return json.MarshalIndent(s, "", "  ")
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("Error writing %s: %v", path, err)
	}
	log.Printf("Wrote %s", path)
}
