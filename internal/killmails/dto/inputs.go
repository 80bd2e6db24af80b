package dto

// ListRecentKillmailsInput filters the recent-killmails listing.
type ListRecentKillmailsInput struct {
	Limit         int    `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Maximum number of killmails to return"`
	Cursor        string `query:"cursor" doc:"Opaque pagination cursor from a previous response"`
	SystemID      int64  `query:"system_id" doc:"Filter by solar system ID"`
	AllianceID    int64  `query:"alliance_id" doc:"Filter by victim or attacker alliance ID"`
	CorporationID int64  `query:"corporation_id" doc:"Filter by victim or attacker corporation ID"`
	CharacterID   int64  `query:"character_id" doc:"Filter by victim or attacker character ID"`
	SpaceType     string `query:"space_type" enum:"highsec,lowsec,nullsec,wormhole,pochven" doc:"Filter by space type"`
}

// StreamKillmailsInput configures the live killmail stream.
type StreamKillmailsInput struct {
	Once      bool   `query:"once" doc:"Send one snapshot event and close instead of streaming"`
	Limit     int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Number of killmails in the snapshot event"`
	SpaceType string `query:"space_type" enum:"highsec,lowsec,nullsec,wormhole,pochven" doc:"Only stream killmails from this space type"`
}

// ImportCharacterRecentInput identifies the character whose recent killmails
// should be imported from the upstream.
type ImportCharacterRecentInput struct {
	CharacterID int64 `path:"character_id" minimum:"1" doc:"EVE character ID"`
}
