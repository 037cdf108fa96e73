// Package keyvalue holds the key/value pairs used to attach context to
// diagnostic handlers.
package keyvalue

type T struct {
	Key   string
	Value string
}

// KV creates a key-value pair
func KV(k, v string) T {
	return T{
		Key:   k,
		Value: v,
	}
}
