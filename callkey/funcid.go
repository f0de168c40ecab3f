package callkey

import (
	"reflect"
	"runtime"
	"strings"
)

// FuncID names a wrapped function. Namespace is the defining package, so two
// functions with the same Name in different packages never share cache entries.
type FuncID struct {
	Namespace string
	Name      string
}

func (id FuncID) String() string {
	if id.Namespace == "" {
		return id.Name
	}
	return id.Namespace + "." + id.Name
}

// ID builds a FuncID from explicit parts.
func ID(namespace, name string) FuncID {
	return FuncID{Namespace: namespace, Name: name}
}

// IDOf derives a FuncID from fn's symbol, e.g. "github.com/x/y/pkg.(*T).Method"
// becomes {Namespace: "github.com/x/y/pkg", Name: "(*T).Method"}.
// Closures get the compiler-generated suffix (".func1"), so distinct closures
// in one function stay distinct. fn must be a non-nil func.
func IDOf(fn any) FuncID {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic("callkey.IDOf: not a func")
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return FuncID{Name: v.Type().String()}
	}
	return splitSymbol(rf.Name())
}

func splitSymbol(full string) FuncID {
	// The package path ends at the first '.' after the last '/'.
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return FuncID{Name: full}
	}
	cut := slash + 1 + dot
	return FuncID{Namespace: full[:cut], Name: full[cut+1:]}
}
