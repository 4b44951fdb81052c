package models

// Document is a schemaless stored document, the unit both storage backends
// deal in. Values are plain JSON-compatible types (string, []any,
// map[string]any); backend-internal identifiers are stripped before a
// Document reaches callers.
type Document map[string]any

// Clone returns a shallow copy one level deep, enough to keep callers from
// mutating store-internal state through returned documents.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		switch vv := v.(type) {
		case map[string]any:
			m := make(map[string]any, len(vv))
			for mk, mv := range vv {
				m[mk] = mv
			}
			out[k] = m
		case []any:
			out[k] = append([]any{}, vv...)
		default:
			out[k] = v
		}
	}
	return out
}
