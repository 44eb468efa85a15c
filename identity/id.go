package identity

import (
	"fmt"
	"reflect"
)

// IDFunc extracts the id of an entity. ok is false for entities without an id;
// those pass through Reconcile untouched and are never cached.
type IDFunc[K comparable, E any] func(*E) (id K, ok bool)

// Identifiable lets an entity report its own id. DefaultID prefers it.
type Identifiable[K comparable] interface {
	EntityID() (K, bool)
}

// DefaultID uses Identifiable when *E implements it, otherwise an exported
// field named ID or Id. A zero id counts as no id.
func DefaultID[K comparable, E any](e *E) (K, bool) {
	if e == nil {
		var zero K
		return zero, false
	}
	if v, ok := any(e).(Identifiable[K]); ok {
		return v.EntityID()
	}
	return FieldID[K, E]("ID", "Id")(e)
}

// FieldID returns an IDFunc that reads the first existing field among names.
// The field must hold K or a type convertible to K.
func FieldID[K comparable, E any](names ...string) IDFunc[K, E] {
	kt := reflect.TypeFor[K]()
	return func(e *E) (K, bool) {
		var zero K
		if e == nil {
			return zero, false
		}
		v := reflect.ValueOf(e).Elem()
		if v.Kind() != reflect.Struct {
			return zero, false
		}
		for _, name := range names {
			f := v.FieldByName(name)
			if !f.IsValid() || !f.CanInterface() {
				continue
			}
			if f.IsZero() {
				return zero, false
			}
			if id, ok := f.Interface().(K); ok {
				return id, true
			}
			if kt.Kind() == reflect.String && f.Kind() != reflect.String {
				// numeric ids keyed by string: format, never rune-convert
				return reflect.ValueOf(fmt.Sprint(f.Interface())).Convert(kt).Interface().(K), true
			}
			if f.Type().ConvertibleTo(kt) {
				return f.Convert(kt).Interface().(K), true
			}
			return zero, false
		}
		return zero, false
	}
}
