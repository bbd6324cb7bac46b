// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file, and environment variables.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// TeamSize is the fixed number of players per team.
	TeamSize int `koanf:"team_size"`

	// RoomCapacity is the fixed number of players per room.
	RoomCapacity int `koanf:"room_capacity"`

	// EventIntervalMinutes is the period between event open times.
	EventIntervalMinutes int `koanf:"event_interval_minutes"`

	// JoiningWindowMinutes is how long before an event's close time the
	// registration window opens.
	JoiningWindowMinutes int `koanf:"joining_window_minutes"`

	// ExtensionWindowMinutes is how long past the close time registration may
	// remain open while a room is incomplete.
	ExtensionWindowMinutes int `koanf:"extension_window_minutes"`

	// DisplayOffsetMinutes shifts the advertised event time past the close time.
	DisplayOffsetMinutes int `koanf:"display_offset_minutes"`

	// DailyAnchorMinutes is the number of minutes after 00:00 UTC at which the
	// first event of a day opens.
	DailyAnchorMinutes int `koanf:"daily_anchor_minutes"`

	// EventLifetimeMinutes is how long past its start time an archived event
	// is retained before pruning.
	EventLifetimeMinutes int `koanf:"event_lifetime_minutes"`

	// TickSeconds is the scheduler tick period.
	TickSeconds int `koanf:"tick_seconds"`

	// VoteTimeoutSeconds forces a format decision this long after room creation.
	VoteTimeoutSeconds int `koanf:"vote_timeout_seconds"`

	// RatingThreshold is the maximum adjusted-rating spread allowed in a room.
	RatingThreshold int `koanf:"rating_threshold"`

	// RatingFloor and RatingCeiling clamp ratings for matchmaking purposes.
	RatingFloor   int `koanf:"rating_floor"`
	RatingCeiling int `koanf:"rating_ceiling"`

	// PlacementRating is assigned to unrated players flagged as placements.
	PlacementRating int `koanf:"placement_rating"`

	// Strategy selects the room assignment strategy: "truncate" or "balanced".
	Strategy string `koanf:"strategy"`

	// RatingURL is the rating provider's list endpoint.
	RatingURL string `koanf:"rating_url"`

	// RatingRefreshMinutes is the period of the bulk rating refresh.
	RatingRefreshMinutes int `koanf:"rating_refresh_minutes"`

	// RatingRetryBackoffSeconds is the wait before the single refresh retry.
	RatingRetryBackoffSeconds int `koanf:"rating_retry_backoff_seconds"`

	// ForcedFormatOrder is the rotation of formats used by autoscheduling.
	// Empty disables autoscheduling.
	ForcedFormatOrder []string `koanf:"forced_format_order"`

	// ForcedFormatOrderOffset rotates the starting point of the order.
	ForcedFormatOrderOffset int `koanf:"forced_format_order_offset"`

	// ForcedFormatEveryNEvents spaces forced-format events this many event
	// intervals apart.
	ForcedFormatEveryNEvents int `koanf:"forced_format_every_n_events"`

	// ForcedFormatCycles is how many full rotations to schedule ahead when the
	// override list drains.
	ForcedFormatCycles int `koanf:"forced_format_cycles"`

	// ForcedFormatAnchorHourOffset shifts the forced-format anchor from the
	// daily anchor by whole hours.
	ForcedFormatAnchorHourOffset int `koanf:"forced_format_anchor_hour_offset"`

	// AnnounceWebhookURL receives queue announcements as JSON posts. Empty
	// routes announcements to the log instead.
	AnnounceWebhookURL string `koanf:"announce_webhook_url"`

	// SettingsPath is the SQLite file backing the operator settings snapshot.
	SettingsPath string `koanf:"settings_path"`

	// ChannelPoolSize is the number of pre-provisioned room channels available
	// before the provisioner falls back to threads.
	ChannelPoolSize int `koanf:"channel_pool_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		Addr:                      ":9080",
		TeamSize:                  1,
		RoomCapacity:              12,
		EventIntervalMinutes:      60,
		JoiningWindowMinutes:      55,
		ExtensionWindowMinutes:    5,
		DisplayOffsetMinutes:      0,
		DailyAnchorMinutes:        0,
		EventLifetimeMinutes:      120,
		TickSeconds:               20,
		VoteTimeoutSeconds:        120,
		RatingThreshold:           1000,
		RatingFloor:               0,
		RatingCeiling:             20000,
		PlacementRating:           2500,
		Strategy:                  "balanced",
		RatingURL:                 "",
		RatingRefreshMinutes:      10,
		RatingRetryBackoffSeconds: 60,
		ForcedFormatOrder:         nil,
		ForcedFormatOrderOffset:   0,
		ForcedFormatEveryNEvents:  0,
		ForcedFormatCycles:        1,
		AnnounceWebhookURL:        "",
		SettingsPath:              "./settings.db",
		ChannelPoolSize:           0,
	}
}
