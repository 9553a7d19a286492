package assert

import (
	"fmt"
	"reflect"
)

func describe(what []string) string {
	if len(what) == 0 {
		return "value"
	}
	return what[0]
}

// NotNil panics if value is nil, this includes typed nils hidden behind interfaces
// (a nil *T passed as an interface value).
func NotNil(value any, what ...string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", describe(what)))
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", describe(what)))
		}
	}
}

func NotEmptyStr(str string, what ...string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", describe(what)))
	}
}
