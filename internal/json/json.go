// Package json routes encoding through sonic while keeping the encoding/json
// surface the rest of the module is written against.
package json

import "github.com/bytedance/sonic"

var api = sonic.ConfigStd

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}
