package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"fileledger/core/block"
)

// ErrSchema marks a document that does not match its schema.
var ErrSchema = errors.New("schema validation failed")

// SchemaError lists every schema problem found in one document.
type SchemaError struct {
	Document string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s failed schema validation: %s", e.Document, strings.Join(e.Problems, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

type compiled struct {
	once   sync.Once
	source string
	schema *gojsonschema.Schema
	err    error
}

func (c *compiled) get() (*gojsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.source))
	})
	return c.schema, c.err
}

var (
	payloadDoc = &compiled{source: payloadSchema}
	storeDoc   = &compiled{source: storeSchema}
)

// ValidatePayload checks a block payload before it is appended.
func ValidatePayload(p block.Payload) error {
	if p == nil {
		return &SchemaError{Document: "payload", Problems: []string{"payload is missing"}}
	}
	if problems := invalidUTF8(reflect.ValueOf(p), "(root)", nil); len(problems) > 0 {
		return &SchemaError{Document: "payload", Problems: problems}
	}
	return validate(payloadDoc, "payload", gojsonschema.NewGoLoader(p))
}

// ValidateStore checks a raw persisted chain document.
func ValidateStore(raw []byte) error {
	return validate(storeDoc, "chain store", gojsonschema.NewBytesLoader(raw))
}

func validate(c *compiled, name string, doc gojsonschema.JSONLoader) error {
	schema, err := c.get()
	if err != nil {
		return fmt.Errorf("compile %s schema: %w", name, err)
	}
	result, err := schema.Validate(doc)
	if err != nil {
		return &SchemaError{Document: name, Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &SchemaError{Document: name, Problems: problems}
}

// invalidUTF8 reports every string key or value below v that is not valid
// UTF-8. Encoding would silently replace those bytes, so the stored block
// would no longer hash or look up like the appended one.
func invalidUTF8(v reflect.Value, path string, problems []string) []string {
	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if !v.IsNil() {
			problems = invalidUTF8(v.Elem(), path, problems)
		}
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			problems = append(problems, path+": string is not valid UTF-8")
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			name := fmt.Sprint(key.Interface())
			if key.Kind() == reflect.String && !utf8.ValidString(key.String()) {
				problems = append(problems, path+": key "+strconv.Quote(name)+" is not valid UTF-8")
				continue
			}
			problems = invalidUTF8(iter.Value(), path+"."+name, problems)
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return problems
		}
		for i := 0; i < v.Len(); i++ {
			problems = invalidUTF8(v.Index(i), path+"["+strconv.Itoa(i)+"]", problems)
		}
	}
	return problems
}
