package entities

// BlacklistEntry blocks a user from opening tickets in a guild.
type BlacklistEntry struct {
	GuildID string `json:"guild_id" bson:"guild_id"`
	UserID  string `json:"user_id" bson:"user_id"`
	Reason  string `json:"reason" bson:"reason"`
}

// ConfigOverride is a per guild key/value override.
type ConfigOverride struct {
	GuildID string `json:"guild_id" bson:"guild_id"`
	Key     string `json:"key" bson:"key"`
	Value   string `json:"value" bson:"value"`
}

// StatusCount is the number of tickets in a status.
type StatusCount struct {
	Status Status `json:"status" bson:"_id"`
	Count  int64  `json:"count" bson:"count"`
}
