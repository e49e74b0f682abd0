package battlelog

import "encoding/json"

// ProfileIdentity is resolved once from the profile payload at startup and
// parameterizes every subsequent endpoint URL. It is immutable for the run.
type ProfileIdentity struct {
	ProfileName string
	ProfileID   string
	UserID      string

	// ClubID is empty when the soldier is not in a platoon; the club
	// fetch is skipped in that case.
	ClubID string
}

// ReportStub is one entry of the paginated battle-report index. The service
// returns stubs ordered by CreatedAt descending; that order is preserved and
// never re-sorted or deduplicated.
type ReportStub struct {
	GameReportID string `json:"gameReportId"`
	CreatedAt    int64  `json:"createdAt"`
}

// ReportDetail is a fully hydrated battle report. ID comes from the body's
// own id field and names the persisted file.
type ReportDetail struct {
	ID   string
	Body json.RawMessage
}

// profilePayload mirrors the parts of the /user/ response the archiver needs.
// Everything else in the payload is archived verbatim without decoding.
type profilePayload struct {
	Context struct {
		ActivityStream []struct {
			Persona struct {
				PersonaID string `json:"personaId"`
				UserID    string `json:"userId"`
			} `json:"persona"`
		} `json:"activitystream"`
		ProfileCommon struct {
			Club *struct {
				ID string `json:"id"`
			} `json:"club"`
		} `json:"profileCommon"`
	} `json:"context"`
}
