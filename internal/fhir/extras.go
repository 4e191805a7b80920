package fhir

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Extras holds the JSON members a resource type does not model. FHIR update replaces the whole
// resource, so whatever hcw@home sent has to go back unchanged.
type Extras map[string]json.RawMessage

var knownFields sync.Map // reflect.Type -> map[string]bool

func fieldNames(t reflect.Type) map[string]bool {
	if names, ok := knownFields.Load(t); ok {
		return names.(map[string]bool)
	}

	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch tag {
		case "-":
			continue
		case "":
			names[f.Name] = true
		default:
			names[tag] = true
		}
	}
	knownFields.Store(t, names)
	return names
}

// unmarshalWithExtras decodes data into v (a pointer to a struct without JSON methods)
// and keeps every member v has no field for
func unmarshalWithExtras(data []byte, v any, extras *Extras) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	known := fieldNames(reflect.TypeOf(v).Elem())
	for k := range all {
		if known[k] {
			delete(all, k)
		}
	}

	if len(all) == 0 {
		*extras = nil
		return nil
	}
	*extras = all
	return nil
}

// marshalWithExtras encodes v and adds back the unmodelled members. Modelled fields win
func marshalWithExtras(v any, extras Extras) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil || len(extras) == 0 {
		return body, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extras {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

// JSON round-trip for the resources read from hcw@home and written back
func (m *Meta) UnmarshalJSON(data []byte) error {
	type plain Meta
	return unmarshalWithExtras(data, (*plain)(m), &m.Extras)
}

func (m Meta) MarshalJSON() ([]byte, error) {
	type plain Meta
	return marshalWithExtras(plain(m), m.Extras)
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	type plain Reference
	return unmarshalWithExtras(data, (*plain)(r), &r.Extras)
}

func (r Reference) MarshalJSON() ([]byte, error) {
	type plain Reference
	return marshalWithExtras(plain(r), r.Extras)
}

func (i *Identifier) UnmarshalJSON(data []byte) error {
	type plain Identifier
	return unmarshalWithExtras(data, (*plain)(i), &i.Extras)
}

func (i Identifier) MarshalJSON() ([]byte, error) {
	type plain Identifier
	return marshalWithExtras(plain(i), i.Extras)
}

func (n *HumanName) UnmarshalJSON(data []byte) error {
	type plain HumanName
	return unmarshalWithExtras(data, (*plain)(n), &n.Extras)
}

func (n HumanName) MarshalJSON() ([]byte, error) {
	type plain HumanName
	return marshalWithExtras(plain(n), n.Extras)
}

func (c *ContactPoint) UnmarshalJSON(data []byte) error {
	type plain ContactPoint
	return unmarshalWithExtras(data, (*plain)(c), &c.Extras)
}

func (c ContactPoint) MarshalJSON() ([]byte, error) {
	type plain ContactPoint
	return marshalWithExtras(plain(c), c.Extras)
}

func (p *Person) UnmarshalJSON(data []byte) error {
	type plain Person
	return unmarshalWithExtras(data, (*plain)(p), &p.Extras)
}

func (p Person) MarshalJSON() ([]byte, error) {
	type plain Person
	return marshalWithExtras(plain(p), p.Extras)
}

func (p *AppointmentParticipant) UnmarshalJSON(data []byte) error {
	type plain AppointmentParticipant
	return unmarshalWithExtras(data, (*plain)(p), &p.Extras)
}

func (p AppointmentParticipant) MarshalJSON() ([]byte, error) {
	type plain AppointmentParticipant
	return marshalWithExtras(plain(p), p.Extras)
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	type plain Appointment
	return unmarshalWithExtras(data, (*plain)(a), &a.Extras)
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	type plain Appointment
	return marshalWithExtras(plain(a), a.Extras)
}
