// Package archive assembles and persists the complete output set for one
// profile. Storage goes through a gocloud.dev blob bucket so the archive can
// land on a local directory or any bucket-shaped store without changing the
// writer.
package archive

import (
	"encoding/json"

	"github.com/brisppy/battlelog-archiver/pkg/battlelog"
)

// Bundle is the complete archive for one profile: seven metadata documents,
// the full stub index, and every successfully hydrated report. Every report
// detail corresponds to a discovered stub; the reverse does not hold, since
// stubs whose fetches exhausted their retries are absent.
type Bundle struct {
	ProfileData     json.RawMessage
	ClubData        json.RawMessage
	WeaponStats     json.RawMessage
	VehicleStats    json.RawMessage
	DetailedStats   json.RawMessage
	AssignmentStats json.RawMessage
	AwardStats      json.RawMessage

	ReportList []battlelog.ReportStub
	Reports    []battlelog.ReportDetail
}

// metadataFiles maps archive filenames to their documents in a fixed order.
func (b *Bundle) metadataFiles() []struct {
	Name string
	Data json.RawMessage
} {
	return []struct {
		Name string
		Data json.RawMessage
	}{
		{"profile_data.json", b.ProfileData},
		{"club_data.json", b.ClubData},
		{"weapon_stats.json", b.WeaponStats},
		{"vehicle_stats.json", b.VehicleStats},
		{"detailed_stats.json", b.DetailedStats},
		{"assignment_stats.json", b.AssignmentStats},
		{"award_stats.json", b.AwardStats},
	}
}
