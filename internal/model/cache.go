package model

import "time"

// CacheRecord is one cached enrichment result keyed by record id. Writes
// replace the whole row; reads tolerate rows written by older builds that
// lack the newer columns.
type CacheRecord struct {
	ID                 string              `json:"id"`
	Analysis           *AnalysisResult     `json:"analysis"`
	MarketingMaterials []MarketingMaterial `json:"marketing_materials"`
	SimilarCustomers   []SimilarCustomer   `json:"similar_customers"`
	MeetingNotes       []MeetingNote       `json:"meeting_notes"`
	CompanyName        string              `json:"company_name"`
	FitScore           int                 `json:"fit_score"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// MeetingNote is the cached summary of one recorded meeting tied to the
// record's contact.
type MeetingNote struct {
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Overview    string    `json:"overview,omitempty"`
	ActionItems string    `json:"action_items,omitempty"`
}
