package domain

import "github.com/totegamma/greenledger"

// NotFoundMarker fills every metadata field of the not-found sentinel.
const NotFoundMarker = "Not Found"

// Payload is the registry-specific metadata carried by a Record.
// NotFound returns the payload used by the not-found sentinel.
type Payload[P any] interface {
	Category() string
	NotFound() P
}

// Record is a registered entity. Everything except Verified is immutable once created.
type Record[P any] struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Payload   P      `json:"payload"`
	CreatedAt uint64 `json:"createdAt"`
	Verified  bool   `json:"verified"`
}

// Found reports whether r is a stored record rather than the not-found sentinel.
// Ids are allocated from 1, so id 0 never names a stored record.
func (r Record[P]) Found() bool {
	return r.ID != 0
}

// NotFoundRecord builds the sentinel returned by lookups of absent ids.
func NotFoundRecord[P Payload[P]]() Record[P] {
	var zero P
	return Record[P]{
		ID:        0,
		Owner:     greenledger.ZeroAddress,
		Payload:   zero.NotFound(),
		CreatedAt: 0,
		Verified:  false,
	}
}

// Stats is maintained incrementally alongside every record mutation.
type Stats struct {
	TotalRecords    uint64 `json:"totalRecords"`
	VerifiedRecords uint64 `json:"verifiedRecords"`
	CategoryCount   uint64 `json:"categoryCount"`
}
