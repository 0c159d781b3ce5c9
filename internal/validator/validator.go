package validator

import (
	"fmt"
	"reflect"
)

// Validate returns an error naming the component if any dependency is nil or zero.
func Validate(name string, deps ...any) error {
	for i, dep := range deps {
		if isMissing(dep) {
			return fmt.Errorf("missing required deps for component: %s (argument %d)", name, i)
		}
	}

	return nil
}

func isMissing(dep any) bool {
	if dep == nil {
		return true
	}

	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
