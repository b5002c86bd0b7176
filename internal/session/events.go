package session

// Role tags which side of the conversation produced a transcript fragment.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Event is the tagged union of incoming session events the controller
// dispatches on. Exactly one concrete type backs each value.
type Event interface {
	eventType() string
}

// AudioChunkEvent carries one raw PCM chunk of model speech, already
// transport-decoded from base64 but not yet PCM-decoded.
type AudioChunkEvent struct {
	Data []byte
}

func (AudioChunkEvent) eventType() string { return "audio_chunk" }

// TranscriptEvent carries one partial-transcript fragment for either side.
type TranscriptEvent struct {
	Role Role
	Text string
}

func (TranscriptEvent) eventType() string { return "transcript" }

// ToolCallEvent is a remote request to run a client-side function.
type ToolCallEvent struct {
	ID   string
	Name string
	Args map[string]any
}

func (ToolCallEvent) eventType() string { return "tool_call" }

// InterruptedEvent signals barge-in: the user started talking over the model
// and current playback must stop immediately.
type InterruptedEvent struct{}

func (InterruptedEvent) eventType() string { return "interrupted" }
