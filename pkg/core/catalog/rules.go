package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"

	"github.com/duneshique/sharex-settlement/pkg/core/apportion"
	"github.com/duneshique/sharex-settlement/pkg/core/classify"
	"github.com/duneshique/sharex-settlement/pkg/core/utils"
)

// CampaignRules is the classification table and the exchange rates that
// travel with it.
type CampaignRules struct {
	Rules []classify.Rule
	Rates apportion.Rates
}

// Classifier builds a classifier, falling back to the default table when the
// file defined no rules.
func (c CampaignRules) Classifier() *classify.Classifier {
	if len(c.Rules) == 0 {
		return classify.Default()
	}
	return classify.New(c.Rules)
}

// LoadCampaignRules reads campaign rules. Two shapes are accepted:
//
//	classification_rules:
//	  target_mapping:
//	    SHARE X: {type: indirect}
//	    PLUS X: {type: direct, company_id: plusx, aliases: [플러스엑스, plusx]}
//	exchange_rates: {"2024-10": 1361.0}
//
// or a flat `rules:` list of classify.Rule. Key order of target_mapping is
// the rule priority and is kept for YAML and JSON. Hjson input is converted
// to JSON first, which sorts keys, so Hjson files should use the rules list.
func LoadCampaignRules(path string) (CampaignRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CampaignRules{}, eris.Wrapf(err, "reading %s", path)
	}

	if !isYAML(path) {
		// JSON is YAML; compacting keeps key order and drops tab indentation.
		var probe any
		text, err := utils.SmartParse(string(data), &probe)
		if err != nil {
			return CampaignRules{}, eris.Wrapf(err, "parsing %s", path)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(text)); err != nil {
			return CampaignRules{}, eris.Wrapf(err, "parsing %s", path)
		}
		data = buf.Bytes()
	}
	var ms yaml.MapSlice
	if err := yaml.Unmarshal(data, &ms); err != nil {
		return CampaignRules{}, eris.Wrapf(err, "parsing %s", path)
	}
	root := fromMapSlice(ms)

	var out CampaignRules
	if list, ok := root.get("rules"); ok {
		if err := convert(list, &out.Rules); err != nil {
			return CampaignRules{}, eris.Wrapf(err, "rules in %s", path)
		}
	} else if cr, ok := root.object("classification_rules"); ok {
		if tm, ok := cr.object("target_mapping"); ok {
			for _, kv := range tm {
				var r classify.Rule
				if err := convert(kv.value, &r); err != nil {
					return CampaignRules{}, eris.Wrapf(err, "rule %q in %s", kv.key, path)
				}
				r.Target = kv.key
				out.Rules = append(out.Rules, r)
			}
		}
	}

	if rates, ok := root.object("exchange_rates"); ok {
		out.Rates = apportion.Rates{}
		for _, kv := range rates {
			rate, err := toFloat(kv.value)
			if err != nil {
				return CampaignRules{}, eris.Wrapf(err, "exchange rate %s in %s", kv.key, path)
			}
			out.Rates[kv.key] = rate
		}
	}

	for i := range out.Rules {
		if err := utils.ValidateStruct(out.Rules[i]); err != nil {
			return CampaignRules{}, eris.Wrapf(err, "rule %q in %s", out.Rules[i].Target, path)
		}
	}
	return out, nil
}

// ordered is a decoded object with its key order kept.
type ordered []keyValue

type keyValue struct {
	key   string
	value any
}

func (o ordered) get(key string) (any, bool) {
	for _, kv := range o {
		if kv.key == key {
			return kv.value, true
		}
	}
	return nil, false
}

func (o ordered) object(key string) (ordered, bool) {
	v, ok := o.get(key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(ordered)
	return obj, ok
}

func fromMapSlice(ms yaml.MapSlice) ordered {
	out := make(ordered, 0, len(ms))
	for _, item := range ms {
		out = append(out, keyValue{key: fmt.Sprint(item.Key), value: normalize(item.Value)})
	}
	return out
}

// normalize turns nested decoder containers into ordered / []any / scalars.
func normalize(v any) any {
	switch t := v.(type) {
	case yaml.MapSlice:
		return fromMapSlice(t)
	case map[interface{}]interface{}:
		ms := make(yaml.MapSlice, 0, len(t))
		for k, val := range t {
			ms = append(ms, yaml.MapItem{Key: k, Value: val})
		}
		return fromMapSlice(ms)
	case []interface{}:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}

// plain converts ordered values back to maps for JSON encoding.
func plain(v any) any {
	switch t := v.(type) {
	case ordered:
		m := make(map[string]any, len(t))
		for _, kv := range t {
			m[kv.key] = plain(kv.value)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	}
	return v
}

// convert decodes a generic value into dst through JSON.
func convert(v any, dst any) error {
	data, err := json.Marshal(plain(v))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
