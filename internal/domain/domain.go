// Package domain defines the entities the tracker extracts from Diet
// records: bills, members, parties, speeches, policy issues, and the
// CAP-style policy category taxonomy.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// House identifies a chamber of the National Diet.
type House string

const (
	HouseRepresentatives House = "representatives" // 衆議院
	HouseCouncillors     House = "councillors"     // 参議院
)

// Valid reports whether h is a known chamber.
func (h House) Valid() bool {
	return h == HouseRepresentatives || h == HouseCouncillors
}

// BillStatus tracks a bill through the legislative lifecycle.
type BillStatus string

const (
	StatusBacklog     BillStatus = "backlog"
	StatusUnderReview BillStatus = "under_review"
	StatusPendingVote BillStatus = "pending_vote"
	StatusPassed      BillStatus = "passed"
	StatusRejected    BillStatus = "rejected"
	StatusWithdrawn   BillStatus = "withdrawn"
)

// Valid reports whether s is a known bill status.
func (s BillStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusUnderReview, StatusPendingVote,
		StatusPassed, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// CategoryLayer distinguishes the two levels of the CAP taxonomy.
type CategoryLayer string

const (
	// LayerL1 is a major topic (e.g. "Macroeconomics", 21 categories).
	LayerL1 CategoryLayer = "L1"
	// LayerL2 is a sub-topic under exactly one L1 parent.
	LayerL2 CategoryLayer = "L2"
)

// Bill is a piece of legislation submitted to the Diet.
//
// (Session, House, BillNumber) is the natural key used for ingest upserts;
// BillNumber is stored zero-padded to three digits.
type Bill struct {
	ID          uuid.UUID  `json:"id"`
	Session     int        `json:"session"` // Diet session number, e.g. 208
	House       House      `json:"house"`
	BillNumber  string     `json:"bill_number"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Status      BillStatus `json:"status"`
	Category    string     `json:"category,omitempty"` // editorial keyword category
	DietURL     string     `json:"diet_url,omitempty"`
	AirtableID  string     `json:"airtable_id,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Member is a sitting or former Diet member.
type Member struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	NameKana   string    `json:"name_kana,omitempty"`
	House      House     `json:"house"`
	District   string    `json:"district,omitempty"`
	PartyID    uuid.UUID `json:"party_id,omitempty"`
	PartyName  string    `json:"party_name,omitempty"` // denormalized for list views
	AirtableID string    `json:"airtable_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Party is a parliamentary group.
type Party struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	NameShort string    `json:"name_short,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Speech is a single utterance from the NDL minutes record.
type Speech struct {
	ID         uuid.UUID `json:"id"`
	NDLID      string    `json:"ndl_id"` // NDL speechID, unique per utterance
	Session    int       `json:"session"`
	House      House     `json:"house"`
	Meeting    string    `json:"meeting"` // e.g. "予算委員会"
	SpeakerName string   `json:"speaker_name"`
	MemberID   uuid.UUID `json:"member_id,omitempty"` // zero when the speaker is not a matched member
	Body       string    `json:"body"`
	SpokenAt   time.Time `json:"spoken_at"`
	MinutesURL string    `json:"minutes_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Issue is an editorial policy issue grouping one or more bills for the
// kanban board.
type Issue struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary,omitempty"`
	Status     BillStatus `json:"status"`
	CategoryID uuid.UUID  `json:"category_id,omitempty"`
	AirtableID string     `json:"airtable_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PolicyCategory is a node in the CAP-style taxonomy. L1 nodes have a nil
// ParentID; L2 nodes point at their L1 parent.
type PolicyCategory struct {
	ID         uuid.UUID     `json:"id"`
	CAPCode    string        `json:"cap_code"` // e.g. "1" (L1), "105" (L2)
	Layer      CategoryLayer `json:"layer"`
	TitleJA    string        `json:"title_ja"`
	TitleEN    string        `json:"title_en,omitempty"`
	ParentID   *uuid.UUID    `json:"parent_id,omitempty"`
	AirtableID string        `json:"airtable_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// BillCategoryLink connects a bill to a policy category. Automatic links
// carry the classifier's confidence; manual links are editorial decisions
// and are never overwritten by classification runs.
type BillCategoryLink struct {
	BillID     uuid.UUID `json:"bill_id"`
	CategoryID uuid.UUID `json:"category_id"`
	Confidence float64   `json:"confidence_score"`
	IsManual   bool      `json:"is_manual"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CategoryTree is a PolicyCategory with its L2 children, as served by the
// category tree endpoint.
type CategoryTree struct {
	PolicyCategory
	Children []PolicyCategory `json:"children,omitempty"`
}
