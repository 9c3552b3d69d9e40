package types

import (
	"strings"
)

const (
	featureSeparator      = "|"
	featureValueSeparator = ":"
)

// Features is the ordered feature column of a token. A feature without a
// value (a bare key) is stored with a nil value.
type Features struct {
	names  []string
	values map[string]*string
}

func NewFeatures() *Features {
	return &Features{values: make(map[string]*string)}
}

// ParseFeatures parses a "name:value|name" feature column. The empty
// column "_" yields nil.
func ParseFeatures(column string) *Features {
	if column == emptyField || len(column) == 0 {
		return nil
	}

	features := NewFeatures()
	for _, part := range strings.Split(column, featureSeparator) {
		if len(part) == 0 {
			continue
		}
		kv := strings.SplitN(part, featureValueSeparator, 2)
		if len(kv) == 1 {
			features.Set(kv[0], nil)
			continue
		}
		value := kv[1]
		features.Set(kv[0], &value)
	}
	return features
}

func (features *Features) Get(name string) (*string, bool) {
	value, ok := features.values[name]
	return value, ok
}

func (features *Features) Set(name string, value *string) {
	if _, ok := features.values[name]; !ok {
		features.names = append(features.names, name)
	}
	features.values[name] = value
}

func (features *Features) Len() int {
	return len(features.names)
}

func (features *Features) Clone() *Features {
	clone := NewFeatures()
	for _, name := range features.names {
		value := features.values[name]
		if value != nil {
			v := *value
			value = &v
		}
		clone.Set(name, value)
	}
	return clone
}

func (features *Features) String() string {
	if len(features.names) == 0 {
		return emptyField
	}

	var sb strings.Builder
	for i, name := range features.names {
		if i > 0 {
			sb.WriteString(featureSeparator)
		}
		sb.WriteString(name)
		if value := features.values[name]; value != nil {
			sb.WriteString(featureValueSeparator)
			sb.WriteString(*value)
		}
	}
	return sb.String()
}
