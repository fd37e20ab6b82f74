package bridge

// Inbound message types, sent by the extension.
const (
	msgPosition  = "position"
	msgTrackData = "track_data"
	msgPong      = "pong"
)

// Outbound message types, sent by the hub.
const (
	msgPing              = "ping"
	msgRequestState      = "request_state"
	msgRequestTrackData  = "request_track_data"
	msgControlAck        = "control_ack" // inbound, in reply to an outbound control command
)

// inboundMessage is the union of every shape an extension may send; fields
// irrelevant to Type are simply left zero.
type inboundMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	// control_ack
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`

	// position
	PositionMs         *int64 `json:"position_ms,omitempty"`
	PositionAsOfMillis int64  `json:"position_as_of_timestamp,omitempty"`
	IsPlaying          bool   `json:"is_playing,omitempty"`

	// track_data
	TrackKey    string   `json:"track_key,omitempty"`
	Title       string   `json:"title,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Artists     []string `json:"artists,omitempty"`
	Album       string   `json:"album,omitempty"`
	AlbumArtURI string   `json:"album_art_uri,omitempty"`
	DurationMs  *int64   `json:"duration_ms,omitempty"`
	Liked       *bool    `json:"liked,omitempty"`
	Shuffle     *bool    `json:"shuffle,omitempty"`
	Repeat      *int     `json:"repeat,omitempty"`
	Volume      *int     `json:"volume,omitempty"`

	// track_data extras, passed through opaque since their shape is
	// extension-defined.
	AudioAnalysis any `json:"audio_analysis,omitempty"`
	Colors        any `json:"colors,omitempty"`
}

// outboundMessage is every shape the hub may send to an extension: the
// heartbeat, state/track requests, and control commands.
type outboundMessage struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
}
