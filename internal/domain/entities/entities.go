package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Common errors
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrPersistence   = errors.New("failed to persist document")
	ErrMalformedBody = errors.New("request body must be a JSON object")
)

// Field names of the user record, in the order they are validated and written.
const (
	FieldID         = "id"
	FieldName       = "name"
	FieldEmail      = "email"
	FieldAge        = "age"
	FieldCity       = "city"
	FieldOccupation = "occupation"
	FieldHobbies    = "hobbies"
)

// RequiredUserFields lists the keys a create request must carry, scanned in this order.
var RequiredUserFields = []string{FieldName, FieldEmail, FieldAge, FieldCity, FieldOccupation, FieldHobbies}

// ValidationError reports a required field missing from a create request
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}

// Fields is a decoded JSON object whose values are kept raw until a typed
// field claims them.
type Fields map[string]json.RawMessage

// DecodeFields parses body as a JSON object.
func DecodeFields(body []byte) (Fields, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedBody
	}

	var fields Fields
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return fields, nil
}

// Hobbies holds either a free-form string or a list of strings. It is written
// back in the shape it was read.
type Hobbies struct {
	Text   string
	List   []string
	isList bool
}

// HobbiesText returns a Hobbies value in string form.
func HobbiesText(text string) Hobbies {
	return Hobbies{Text: text}
}

// HobbiesList returns a Hobbies value in list form.
func HobbiesList(items ...string) Hobbies {
	list := make([]string, len(items))
	copy(list, items)
	return Hobbies{List: list, isList: true}
}

// IsList reports whether the value was given as a JSON array.
func (h Hobbies) IsList() bool {
	return h.isList
}

func (h Hobbies) MarshalJSON() ([]byte, error) {
	if !h.isList {
		return json.Marshal(h.Text)
	}
	if h.List == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.List)
}

func (h *Hobbies) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		*h = HobbiesText(text)
		return nil
	}

	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fmt.Errorf("hobbies must be a string or a list of strings")
	}
	*h = HobbiesList(list...)
	return nil
}

func (h Hobbies) clone() Hobbies {
	if !h.isList {
		return h
	}
	return HobbiesList(h.List...)
}

// User represents a person in the directory. A known field whose stored
// value does not fit its Go type keeps the raw value in Attributes and reads
// as the zero value.
type User struct {
	ID         int
	Name       string
	Email      string
	Age        int
	City       string
	Occupation string
	Hobbies    Hobbies

	// Attributes holds every value not carried by a typed field, kept verbatim.
	Attributes map[string]json.RawMessage
}

// Apply merges fields into the user. "id" is ignored; every other value is
// stored, typed when it fits and raw otherwise.
func (u *User) Apply(fields Fields) {
	for key, raw := range fields {
		switch {
		case key == FieldID:
		case isKnownField(key) && u.setKnown(key, raw):
			delete(u.Attributes, key)
		default:
			if u.Attributes == nil {
				u.Attributes = make(map[string]json.RawMessage)
			}
			u.Attributes[key] = append(json.RawMessage(nil), raw...)
		}
	}
}

// setKnown decodes raw into the typed field for key. It reports false, leaving
// the field zeroed, when raw is null or of another JSON type.
func (u *User) setKnown(key string, raw json.RawMessage) bool {
	u.clearKnown(key)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	if err := json.Unmarshal(raw, u.knownTarget(key)); err != nil {
		u.clearKnown(key)
		return false
	}
	return true
}

func (u *User) knownTarget(key string) interface{} {
	switch key {
	case FieldName:
		return &u.Name
	case FieldEmail:
		return &u.Email
	case FieldAge:
		return &u.Age
	case FieldCity:
		return &u.City
	case FieldOccupation:
		return &u.Occupation
	case FieldHobbies:
		return &u.Hobbies
	}
	return nil
}

func (u *User) clearKnown(key string) {
	switch key {
	case FieldName:
		u.Name = ""
	case FieldEmail:
		u.Email = ""
	case FieldAge:
		u.Age = 0
	case FieldCity:
		u.City = ""
	case FieldOccupation:
		u.Occupation = ""
	case FieldHobbies:
		u.Hobbies = Hobbies{}
	}
}

func isKnownField(key string) bool {
	for _, known := range RequiredUserFields {
		if key == known {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	out := u
	out.Hobbies = u.Hobbies.clone()
	if u.Attributes != nil {
		out.Attributes = make(map[string]json.RawMessage, len(u.Attributes))
		for k, v := range u.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

func (u User) MarshalJSON() ([]byte, error) {
	known := []objectField{
		{FieldID, u.ID},
		{FieldName, u.Name},
		{FieldEmail, u.Email},
		{FieldAge, u.Age},
		{FieldCity, u.City},
		{FieldOccupation, u.Occupation},
		{FieldHobbies, u.Hobbies},
	}

	var extra map[string]json.RawMessage
	for key, raw := range u.Attributes {
		if isKnownField(key) {
			for i := range known {
				if known[i].key == key {
					known[i].value = raw
				}
			}
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[key] = raw
	}
	return marshalObject(known, extra)
}

// UnmarshalJSON requires an integer id; every other key is accepted as is.
func (u *User) UnmarshalJSON(data []byte) error {
	fields, err := DecodeFields(data)
	if err != nil {
		return fmt.Errorf("user must be a JSON object")
	}

	var decoded User
	raw, ok := fields[FieldID]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("user has no id")
	}
	if err := json.Unmarshal(raw, &decoded.ID); err != nil {
		return fmt.Errorf("user id %s is not an integer", raw)
	}
	decoded.Apply(fields)

	*u = decoded
	return nil
}

// Meta carries document bookkeeping. Only TotalUsers is computed; the rest
// passes through unchanged.
type Meta struct {
	TotalUsers  int
	LastUpdated string
	DataSource  string

	Extra map[string]json.RawMessage
}

func (m Meta) MarshalJSON() ([]byte, error) {
	known := []objectField{
		{"total_users", m.TotalUsers},
		{"last_updated", m.LastUpdated},
		{"data_source", m.DataSource},
	}

	var extra map[string]json.RawMessage
	for key, raw := range m.Extra {
		switch key {
		case "total_users":
		case "last_updated":
			known[1].value = raw
		case "data_source":
			known[2].value = raw
		default:
			if extra == nil {
				extra = make(map[string]json.RawMessage)
			}
			extra[key] = raw
		}
	}
	return marshalObject(known, extra)
}

// UnmarshalJSON never fails on field types: total_users is recomputed on
// save, and string fields of another type pass through in Extra.
func (m *Meta) UnmarshalJSON(data []byte) error {
	fields, err := DecodeFields(data)
	if err != nil {
		return fmt.Errorf("meta must be a JSON object")
	}

	var decoded Meta
	for key, raw := range fields {
		var target interface{}
		switch key {
		case "total_users":
			_ = json.Unmarshal(raw, &decoded.TotalUsers)
			continue
		case "last_updated":
			target = &decoded.LastUpdated
		case "data_source":
			target = &decoded.DataSource
		}
		if target != nil && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) && json.Unmarshal(raw, target) == nil {
			continue
		}
		if decoded.Extra == nil {
			decoded.Extra = make(map[string]json.RawMessage)
		}
		decoded.Extra[key] = append(json.RawMessage(nil), raw...)
	}

	*m = decoded
	return nil
}

// Document is the full persisted dataset
type Document struct {
	Users []User `json:"users"`
	Meta  Meta   `json:"meta"`
}

// NewDocument returns the empty document used when nothing usable is on disk.
func NewDocument() *Document {
	return &Document{Users: []User{}}
}

// Recount brings Meta.TotalUsers in line with Users.
func (d *Document) Recount() {
	if d.Users == nil {
		d.Users = []User{}
	}
	d.Meta.TotalUsers = len(d.Users)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Users: make([]User, len(d.Users)),
		Meta:  d.Meta,
	}
	for i, u := range d.Users {
		out.Users[i] = u.Clone()
	}
	if d.Meta.Extra != nil {
		out.Meta.Extra = make(map[string]json.RawMessage, len(d.Meta.Extra))
		for k, v := range d.Meta.Extra {
			out.Meta.Extra[k] = v
		}
	}
	return out
}

type objectField struct {
	key   string
	value interface{}
}

// marshalObject writes the known fields in order, then extra keys sorted.
func marshalObject(known []objectField, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, f := range known {
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
