package battlelog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// One-shot metadata fetches. Each is a single authenticated GET through the
// one-shot status policy; no pagination, no concurrency.

// FetchProfile fetches the soldier's profile page payload.
func (c *Client) FetchProfile(ctx context.Context, profileName string) (json.RawMessage, error) {
	return c.Get(ctx, "/user/"+url.PathEscape(profileName)+"/")
}

// FetchClub fetches the platoon (club) page payload.
func (c *Client) FetchClub(ctx context.Context, clubID string) (json.RawMessage, error) {
	return c.Get(ctx, "/platoons/view/"+url.PathEscape(clubID)+"/")
}

// FetchWeaponStats fetches the soldier's weapon statistics.
func (c *Client) FetchWeaponStats(ctx context.Context, profileID string) (json.RawMessage, error) {
	return c.Get(ctx, "/warsawWeaponsPopulateStats/"+url.PathEscape(profileID)+"/1/stats/")
}

// FetchVehicleStats fetches the soldier's vehicle statistics.
func (c *Client) FetchVehicleStats(ctx context.Context, profileID string) (json.RawMessage, error) {
	return c.Get(ctx, "/warsawvehiclesPopulateStats/"+url.PathEscape(profileID)+"/1/stats/")
}

// FetchDetailedStats fetches the soldier's detailed statistics.
func (c *Client) FetchDetailedStats(ctx context.Context, profileID string) (json.RawMessage, error) {
	return c.Get(ctx, "/warsawdetailedstatspopulate/"+url.PathEscape(profileID)+"/1/stats/")
}

// FetchAssignmentStats fetches the soldier's assignment progress.
func (c *Client) FetchAssignmentStats(ctx context.Context, profileName, profileID, userID string) (json.RawMessage, error) {
	return c.Get(ctx, "/soldier/missionsPopulateStats/"+
		url.PathEscape(profileName)+"/"+
		url.PathEscape(profileID)+"/"+
		url.PathEscape(userID)+"/1/")
}

// FetchAwardStats fetches the soldier's awards.
func (c *Client) FetchAwardStats(ctx context.Context, profileID string) (json.RawMessage, error) {
	return c.Get(ctx, "/warsawawardspopulate/"+url.PathEscape(profileID)+"/1/stats/")
}

// ResolveIdentity extracts the ProfileIdentity from a profile payload.
// Persona fields are required; a missing persona means the profile payload
// was not usable (wrong name, logged-out session) and is a typed decode
// error rather than a silent empty value.
func ResolveIdentity(profileName string, payload json.RawMessage) (ProfileIdentity, error) {
	var p profilePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ProfileIdentity{}, &Error{
			Class:    ErrorClassDecode,
			Endpoint: "/user/" + profileName + "/",
			Err:      fmt.Errorf("decode profile payload: %w", err),
		}
	}

	if len(p.Context.ActivityStream) == 0 {
		return ProfileIdentity{}, &Error{
			Class:    ErrorClassDecode,
			Endpoint: "/user/" + profileName + "/",
			Err:      fmt.Errorf("profile payload has no activity stream; is the session authenticated?"),
		}
	}

	persona := p.Context.ActivityStream[0].Persona
	if persona.PersonaID == "" || persona.UserID == "" {
		return ProfileIdentity{}, &Error{
			Class:    ErrorClassDecode,
			Endpoint: "/user/" + profileName + "/",
			Err:      fmt.Errorf("profile payload is missing persona identifiers"),
		}
	}

	identity := ProfileIdentity{
		ProfileName: profileName,
		ProfileID:   persona.PersonaID,
		UserID:      persona.UserID,
	}
	if club := p.Context.ProfileCommon.Club; club != nil {
		identity.ClubID = club.ID
	}
	return identity, nil
}
