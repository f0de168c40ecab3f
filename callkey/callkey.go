// Package callkey turns a function identity plus its call arguments into a
// stable, comparable key.
//
// Positional arguments are order-sensitive, keyword arguments are not. Values
// are encoded structurally (type name plus value), so two calls with equal
// arguments always produce equal keys inside one process. Values that have no
// stable encoding (funcs, channels, unsafe pointers, cyclic data) are rejected
// with fault.ErrCacheKey instead of being silently hashed by address.
package callkey

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/on-the-ground/wrapkit/fault"
)

// maxDepth bounds pointer and container nesting; deeper values are treated as cyclic.
const maxDepth = 64

// Encoder lets a type supply its own canonical key text.
type Encoder interface {
	CacheKey() string
}

// Args is the argument list of one call.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Of builds positional-only Args.
func Of(positional ...any) Args {
	return Args{Positional: positional}
}

// With returns a copy of a with keyword name set to v.
func (a Args) With(name string, v any) Args {
	out := a.Clone()
	if out.Keyword == nil {
		out.Keyword = make(map[string]any, 1)
	}
	out.Keyword[name] = v
	return out
}

// Clone copies the positional slice and keyword map. Values are not deep-copied.
func (a Args) Clone() Args {
	out := Args{Positional: slices.Clone(a.Positional)}
	if a.Keyword != nil {
		out.Keyword = make(map[string]any, len(a.Keyword))
		for k, v := range a.Keyword {
			out.Keyword[k] = v
		}
	}
	return out
}

// Key identifies one call. Keys are comparable and usable as map keys.
type Key struct {
	Namespace string
	Digest    uint64
	canonical string
}

// Canonical returns the encoded call, without the namespace.
func (k Key) Canonical() string { return k.canonical }

func (k Key) String() string {
	return fmt.Sprintf("%s#%016x", k.Namespace, k.Digest)
}

// New builds the key for calling id with args.
func New(id FuncID, args Args) (Key, error) {
	var b strings.Builder
	b.WriteString(id.Name)
	b.WriteString("(")
	for i, arg := range args.Positional {
		if i > 0 {
			b.WriteString(",")
		}
		if err := encode(&b, reflect.ValueOf(arg), 0); err != nil {
			return Key{}, fmt.Errorf("%w: %s positional %d: %w", fault.ErrCacheKey, id, i, err)
		}
	}
	b.WriteString(";")

	names := make([]string, 0, len(args.Keyword))
	for name := range args.Keyword {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.Quote(name))
		b.WriteString("=")
		if err := encode(&b, reflect.ValueOf(args.Keyword[name]), 0); err != nil {
			return Key{}, fmt.Errorf("%w: %s keyword %q: %w", fault.ErrCacheKey, id, name, err)
		}
	}
	b.WriteString(")")

	canonical := b.String()
	h := xxhash.New()
	_, _ = h.WriteString(id.Namespace)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(canonical)
	return Key{Namespace: id.Namespace, Digest: h.Sum64(), canonical: canonical}, nil
}

var encoderType = reflect.TypeFor[Encoder]()

func encode(b *strings.Builder, v reflect.Value, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("nesting deeper than %d (cyclic value?)", maxDepth)
	}
	if !v.IsValid() {
		b.WriteString("nil")
		return nil
	}

	t := v.Type()
	if t.Implements(encoderType) && v.CanInterface() {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			b.WriteString("nil")
			return nil
		}
		b.WriteString(t.String())
		b.WriteString("{")
		b.WriteString(strconv.Quote(v.Interface().(Encoder).CacheKey()))
		b.WriteString("}")
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		b.WriteString(t.String())
		b.WriteString(":")
		b.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(t.String())
		b.WriteString(":")
		b.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(t.String())
		b.WriteString(":")
		b.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString(t.String())
		b.WriteString(":")
		b.WriteString(strconv.FormatFloat(positiveZero(v.Float()), 'g', -1, t.Bits()))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString(t.String())
		b.WriteString(":")
		c := v.Complex()
		b.WriteString(strconv.FormatComplex(complex(positiveZero(real(c)), positiveZero(imag(c))), 'g', -1, t.Bits()))
	case reflect.String:
		b.WriteString(t.String())
		b.WriteString(":")
		b.WriteString(strconv.Quote(v.String()))
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			b.WriteString(t.String())
			b.WriteString(":nil")
			return nil
		}
		b.WriteString(t.String())
		b.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteString(",")
			}
			if err := encode(b, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		b.WriteString("]")
	case reflect.Map:
		return encodeMap(b, v, depth)
	case reflect.Struct:
		b.WriteString(t.String())
		b.WriteString("{")
		for i := 0; i < v.NumField(); i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(t.Field(i).Name)
			b.WriteString("=")
			if err := encode(b, v.Field(i), depth+1); err != nil {
				return err
			}
		}
		b.WriteString("}")
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			b.WriteString("nil")
			return nil
		}
		if v.Kind() == reflect.Pointer {
			b.WriteString("&")
		}
		return encode(b, v.Elem(), depth+1)
	default:
		return fmt.Errorf("unsupported kind %s (%s)", v.Kind(), t)
	}
	return nil
}

func encodeMap(b *strings.Builder, v reflect.Value, depth int) error {
	if v.IsNil() {
		b.WriteString(v.Type().String())
		b.WriteString(":nil")
		return nil
	}
	type pair struct{ k, v string }
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		if err := encode(&kb, iter.Key(), depth+1); err != nil {
			return err
		}
		if err := encode(&vb, iter.Value(), depth+1); err != nil {
			return err
		}
		pairs = append(pairs, pair{k: kb.String(), v: vb.String()})
	}
	slices.SortFunc(pairs, func(a, b pair) int { return strings.Compare(a.k, b.k) })

	b.WriteString(v.Type().String())
	b.WriteString("{")
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(p.k)
		b.WriteString(":")
		b.WriteString(p.v)
	}
	b.WriteString("}")
	return nil
}

// positiveZero maps -0 to 0 so that equal floats encode equally.
func positiveZero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}
