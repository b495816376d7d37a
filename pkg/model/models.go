package model

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// View is the report shape requested by the caller
type View string

const (
	ViewDetails View = "details"
	ViewList    View = "list"
)

// ParseView validates a raw view parameter
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewDetails, ViewList:
		return View(s), nil
	case "":
		return "", Validationf("missing required parameter 'view'")
	default:
		return "", Validationf("invalid view '%s' (expected 'details' or 'list')", s)
	}
}

// Class describes a host-application class and its attribute codes in display order
type Class struct {
	Name       string      `json:"name"`
	Attributes StringSlice `json:"attributes"`
}

// Object is one host-application record
type Object struct {
	Class  string `json:"class"`
	Key    int64  `json:"key"`
	Fields Fields `json:"fields"`
}

// Attr returns the value of an attribute. The "id" attribute maps to the key.
func (o *Object) Attr(code string) interface{} {
	if code == "id" {
		return o.Key
	}
	return o.Fields[code]
}

// Name returns a friendly name for the object (its "friendlyname" or "name" field, or Class::Key)
func (o *Object) Name() string {
	for _, code := range []string{"friendlyname", "name", "title"} {
		if v, ok := o.Fields[code].(string); ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("%s::%d", o.Class, o.Key)
}

// Serialize converts the record to its REST-like representation limited to attCodes.
// A nil or empty attCodes list yields every stored field.
func (o *Object) Serialize(attCodes []string) SerializedObject {
	so := SerializedObject{
		Class:  o.Class,
		Key:    o.Key,
		Fields: make(map[string]interface{}),
	}
	if len(attCodes) == 0 {
		so.Fields["id"] = o.Key
		for k, v := range o.Fields {
			so.Fields[k] = v
		}
		return so
	}
	for _, code := range attCodes {
		so.Fields[code] = o.Attr(code)
	}
	return so
}

// SerializedObject is the class/key/fields representation handed to templates
type SerializedObject struct {
	Class  string                 `json:"class"`
	Key    int64                  `json:"key"`
	Fields map[string]interface{} `json:"fields"`
}

// Map returns the object as a plain map so processors can extend it (e.g. with attachments)
func (s SerializedObject) Map() map[string]interface{} {
	return map[string]interface{}{
		"class":  s.Class,
		"key":    s.Key,
		"fields": s.Fields,
	}
}

// User is an authenticated host-application user
type User struct {
	ID           int64  `json:"id"`
	Login        string `json:"login"`
	Token        string `json:"-"`
	Language     string `json:"language"`
	ContactClass string `json:"contact_class,omitempty"`
	ContactID    int64  `json:"contact_id,omitempty"`
}

// Attachment is a file attached to a host record
type Attachment struct {
	ID           int64              `json:"id"`
	ItemClass    string             `json:"item_class"`
	ItemID       int64              `json:"item_id"`
	UserID       int64              `json:"user_id"`
	CreationDate time.Time          `json:"creation_date"`
	Contents     AttachmentContents `json:"contents"`
	BlobKey      string             `json:"-"` // Set when contents live in object storage
}

// AttachmentContents holds the document itself
type AttachmentContents struct {
	Data     []byte `json:"data"` // base64 in JSON
	MimeType string `json:"mimetype"`
	FileName string `json:"filename"`
}

// Serialize converts the attachment to the same shape as other serialized objects
func (a *Attachment) Serialize() SerializedObject {
	return SerializedObject{
		Class: "Attachment",
		Key:   a.ID,
		Fields: map[string]interface{}{
			"id":            a.ID,
			"item_class":    a.ItemClass,
			"item_id":       a.ItemID,
			"user_id":       a.UserID,
			"creation_date": a.CreationDate.Format("2006-01-02 15:04:05"),
			"contents": map[string]interface{}{
				"data":     base64.StdEncoding.EncodeToString(a.Contents.Data),
				"mimetype": a.Contents.MimeType,
				"filename": a.Contents.FileName,
			},
		},
	}
}

// MenuItem is a report action offered to the host for a menu or shortcut button
type MenuItem struct {
	UID         string `json:"uid"`
	Label       string `json:"label"`
	URL         string `json:"url"`
	Target      string `json:"target"`
	Precedence  int    `json:"precedence"`
	ForceButton bool   `json:"force_button"`
}

// Fields is a custom type for storing record fields as JSON in SQLite
type Fields map[string]interface{}

// Scan implements sql.Scanner for Fields
func (f *Fields) Scan(value interface{}) error {
	if value == nil {
		*f = make(Fields)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported fields column type %T", value)
	}
	return json.Unmarshal(bytes, f)
}

// Value implements driver.Valuer for Fields
func (f Fields) Value() (driver.Value, error) {
	if len(f) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// StringSlice is a custom type for storing string slices in SQLite
type StringSlice []string

// Scan implements sql.Scanner for StringSlice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("unsupported attribute list column type %T", value)
}

// Value implements driver.Valuer for StringSlice
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
