package registry

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/valpere/perekladach/internal/translator"
)

// Alibaba console naming, accepted when the canonical key is absent.
var credentialAliases = map[string]string{
	"apikey":    "accesskeyid",
	"secretkey": "accesskeysecret",
}

// Resolve extracts the requested provider's slice of the caller
// configuration, fills absent apiUrl/model from the entry defaults and
// checks the entry's credential requirement. When ready is false the error
// explains why and the adapter must not be called.
func Resolve(config map[string]map[string]any, requested string, e Entry) (translator.ProviderConfig, bool, error) {
	var cfg translator.ProviderConfig

	// Null values count as absent so entry defaults still apply. Spelling
	// variants of one key resolve in sorted order, first wins.
	slice := providerSlice(config, requested, e)
	raw := make(map[string]any, len(slice))
	for _, k := range sortedKeys(slice) {
		v := slice[k]
		if v == nil {
			continue
		}
		if _, dup := raw[normalize(k)]; !dup {
			raw[normalize(k)] = v
		}
	}
	for canonical, alias := range credentialAliases {
		if v, ok := raw[alias]; ok {
			if _, present := raw[canonical]; !present {
				raw[canonical] = v
			}
			delete(raw, alias)
		}
	}
	if _, ok := raw["apiurl"]; !ok && e.DefaultAPIURL != "" {
		raw["apiurl"] = e.DefaultAPIURL
	}
	if _, ok := raw["model"]; !ok && e.DefaultModel != "" {
		raw["model"] = e.DefaultModel
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, false, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, false, &translator.Error{
			Kind:    translator.KindConfigurationMissing,
			Service: e.Name,
			Message: "invalid configuration",
			Err:     err,
		}
	}

	switch e.Credentials {
	case RequiresAPIKey:
		if cfg.APIKey == "" {
			return cfg, false, translator.MissingConfig(e.Name, translator.MsgNoAPIKey)
		}
	case RequiresKeyPair:
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			return cfg, false, translator.MissingConfig(e.Name, translator.MsgKeyPairRequired)
		}
	}
	return cfg, true, nil
}

// providerSlice finds the caller's settings for an entry: under the
// requested name first, then the entry key, display name and aliases. For
// each candidate an exact lower-case key beats spelling variants, which are
// tried in sorted order.
func providerSlice(config map[string]map[string]any, requested string, e Entry) map[string]any {
	if len(config) == 0 {
		return nil
	}
	keys := sortedKeys(config)
	candidates := append([]string{requested, e.Key, e.Name}, e.Aliases...)
	for _, c := range candidates {
		if slice, ok := config[strings.ToLower(c)]; ok {
			return slice
		}
		want := normalize(c)
		for _, k := range keys {
			if normalize(k) == want {
				return config[k]
			}
		}
	}
	return nil
}

// MergeConfig overlays one provider configuration on another. Both are keyed
// by normalized provider name in the result, so an overlay slice replaces the
// base slice for the same provider however either side spells it. Within one
// map the normalized spelling beats variants, which apply in sorted order.
func MergeConfig(base, overlay map[string]map[string]any) map[string]map[string]any {
	if len(base) == 0 {
		return overlay
	}
	merged := make(map[string]map[string]any, len(base)+len(overlay))
	add := func(config map[string]map[string]any) {
		seen := make(map[string]bool, len(config))
		for _, k := range sortedKeys(config) {
			key := normalize(k)
			if seen[key] && k != key {
				continue
			}
			seen[key] = true
			merged[key] = config[k]
		}
	}
	add(base)
	add(overlay)
	return merged
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// secondsToDurationHook reads bare numbers as seconds, so "timeout: 30" in
// YAML or JSON means thirty seconds rather than nanoseconds.
func secondsToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	durationType := reflect.TypeOf(time.Duration(0))
	if to != durationType || from == durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}
