package formats

import "fmt"

// Document is an untyped record, which decodes from and encodes to every
// Codec of this package. Nested mappings are always map[string]interface{}.
type Document map[string]interface{}

// UnmarshalYAML decodes a YAML mapping, converting the map[interface{}]interface{}
// values of nested mappings into map[string]interface{}.
func (d *Document) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var m map[string]interface{}
	if err := unmarshal(&m); err != nil {
		return err
	}
	for k, v := range m {
		m[k] = stringKeys(v)
	}
	*d = m
	return nil
}

func stringKeys(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[interface{}]interface{}:
		var out = make(map[string]interface{}, len(vv))
		for k, v := range vv {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case []interface{}:
		for i := range vv {
			vv[i] = stringKeys(vv[i])
		}
		return vv
	default:
		return v
	}
}
