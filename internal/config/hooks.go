package config

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var byteSliceType = reflect.TypeOf([]byte(nil))

// hexHook accepts "0x"-prefixed integers and hex byte strings such as
// "5E010000" or "5E 01 00 00".
func hexHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))

	if to == byteSliceType {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q: %w", data, err)
		}
		return b, nil
	}

	switch to.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(s, 0, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", data, err)
		}
		return reflect.ValueOf(v).Convert(to).Interface(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(s, 0, to.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", data, err)
		}
		return reflect.ValueOf(v).Convert(to).Interface(), nil
	}
	return data, nil
}

// decodeHex decodes a raw viper value into out with hexHook applied.
func decodeHex(input interface{}, out interface{}) error {
	if input == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       hexHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
