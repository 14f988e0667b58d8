package model

import (
	"strings"
)

// RecordKind identifies which CRM module a record belongs to.
type RecordKind string

const (
	KindLead RecordKind = "lead"
	KindDeal RecordKind = "deal"
)

// ModuleName returns the Zoho API module name for the kind.
func (k RecordKind) ModuleName() string {
	switch k {
	case KindDeal:
		return "Deals"
	default:
		return "Leads"
	}
}

// Valid reports whether the kind is one of the supported modules.
func (k RecordKind) Valid() bool {
	return k == KindLead || k == KindDeal
}

// Record is a raw CRM record: a loosely shaped field map keyed by the CRM's
// field API names. Known fields are accessed through helpers; everything else
// passes through untouched for prompt assembly.
type Record struct {
	Kind   RecordKind     `json:"kind"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// StringField returns the named field as a trimmed string, flattening Zoho's
// nested {id, name} lookup objects to their display name.
func (r *Record) StringField(name string) string {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if n, ok := t["name"].(string); ok {
			return strings.TrimSpace(n)
		}
		return ""
	default:
		return ""
	}
}

// CompanyName returns the best available display name for the record.
func (r *Record) CompanyName() string {
	switch r.Kind {
	case KindDeal:
		if n := r.StringField("Deal_Name"); n != "" {
			return n
		}
		return r.StringField("Account_Name")
	default:
		if n := r.StringField("Company"); n != "" {
			return n
		}
		return r.StringField("Last_Name")
	}
}

// Email returns the primary contact email on the record, if any.
func (r *Record) Email() string {
	return r.StringField("Email")
}

// Website returns the record's website URL field, checking the deal-specific
// field name first.
func (r *Record) Website() string {
	if w := r.StringField("Company_Website"); w != "" {
		return w
	}
	return r.StringField("Website")
}

// Attachment is a CRM file attachment with its downloaded content.
type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Content  []byte `json:"-"`
}
