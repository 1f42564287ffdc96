package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davicafu/orderrouter/internal/shared/codec"
)

var (
	ErrUnmatchedRoute = errors.New("no routing rule matched")

	errMalformed    = errors.New("malformed payload")
	errMissingField = errors.New("routing field missing")
	errEmptyKey     = errors.New("routing key empty")
	errNotString    = errors.New("routing key is not a string")
)

// RoutingExtractionError: no se pudo leer la clave de enrutado del payload.
type RoutingExtractionError struct {
	Path string
	Err  error
}

func (e *RoutingExtractionError) Error() string {
	return fmt.Sprintf("routing key extraction at %q failed: %v", e.Path, e.Err)
}

func (e *RoutingExtractionError) Unwrap() error { return e.Err }

// ExtractKey lee un campo de texto siguiendo path sobre una decodificación
// genérica del payload, sin deserializar tipos de dominio.
func ExtractKey(c codec.Codec, payload []byte, path []string) (string, error) {
	joined := strings.Join(path, ".")
	fail := func(err error) (string, error) {
		return "", &RoutingExtractionError{Path: joined, Err: err}
	}

	if len(payload) == 0 {
		return fail(errMalformed)
	}
	var doc interface{}
	if err := c.Unmarshal(payload, &doc); err != nil {
		return fail(fmt.Errorf("%w: %v", errMalformed, err))
	}

	node := doc
	for _, segment := range path {
		m, ok := asMap(node)
		if !ok {
			return fail(errMissingField)
		}
		node, ok = m[segment]
		if !ok {
			return fail(errMissingField)
		}
	}

	key, ok := node.(string)
	if !ok {
		return fail(errNotString)
	}
	if strings.TrimSpace(key) == "" {
		return fail(errEmptyKey)
	}
	return key, nil
}

func asMap(node interface{}) (map[string]interface{}, bool) {
	switch m := node.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	default:
		return nil, false
	}
}
