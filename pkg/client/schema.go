package client

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed events.schema.json
var eventsSchemaJSON []byte

var eventsSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(eventsSchemaJSON))
})

// EventsSchema returns the JSON schema of the /calendar response.
func EventsSchema() []byte {
	return eventsSchemaJSON
}

func validateEvents(body []byte) error {
	schema, err := eventsSchema()
	if err != nil {
		return fmt.Errorf("load events schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validate events: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New("schema violation: " + strings.Join(msgs, "; "))
}
