package identity

import "reflect"

// MergeFunc copies src into the canonical instance dst.
type MergeFunc[E any] func(dst, src *E)

// Merger lets an entity own its merge rules. Auto prefers it when present.
type Merger[E any] interface {
	MergeFrom(src *E)
}

// LastWriteWins overwrites every field of dst with src (shallow).
func LastWriteWins[E any](dst, src *E) {
	*dst = *src
}

// MergeNonZero copies only the exported fields of src that are not the zero
// value. Non-struct entities fall back to LastWriteWins.
func MergeNonZero[E any](dst, src *E) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	if dv.Kind() != reflect.Struct {
		*dst = *src
		return
	}
	t := dv.Type()
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		f := sv.Field(i)
		if f.IsZero() {
			continue
		}
		dv.Field(i).Set(f)
	}
}

// Auto merges through Merger when *E implements it, otherwise LastWriteWins.
func Auto[E any](dst, src *E) {
	if m, ok := any(dst).(Merger[E]); ok {
		m.MergeFrom(src)
		return
	}
	LastWriteWins(dst, src)
}
