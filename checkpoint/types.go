package checkpoint

import "encoding/json"

// Config addresses a checkpoint: a thread, a namespace within the thread
// and optionally one specific checkpoint.
type Config struct {
	ThreadID     string
	CheckpointNS string
	// CheckpointID selects one checkpoint; empty means the latest.
	CheckpointID string
}

// Checkpoint is a snapshot of graph channel state at one step.
type Checkpoint struct {
	V               int                       `json:"v"`
	ID              string                    `json:"id"`
	Timestamp       string                    `json:"ts"`
	ChannelValues   map[string]any            `json:"channel_values"`
	ChannelVersions map[string]any            `json:"channel_versions"`
	VersionsSeen    map[string]map[string]any `json:"versions_seen"`
}

// Metadata carries arbitrary information recorded with a checkpoint, e.g.
// the step number and the writes that produced it.
type Metadata map[string]any

// PendingWrite is a channel write staged against a checkpoint by a task
// that has not completed a full step.
type PendingWrite struct {
	TaskID  string
	Channel string
	Value   any
}

// Tuple is a checkpoint together with its addressing and pending writes.
type Tuple struct {
	Config        Config
	Checkpoint    Checkpoint
	Metadata      Metadata
	ParentConfig  *Config
	PendingWrites []PendingWrite
}

// Serializer converts checkpoint payloads to and from their stored form.
// Dumps returns a type tag alongside the bytes; Loads gets the same tag
// back.
type Serializer interface {
	Dumps(v any) (string, []byte, error)
	Loads(typ string, data []byte, v any) error
}

// JSONSerializer stores payloads as JSON with the type tag "json".
type JSONSerializer struct{}

func (JSONSerializer) Dumps(v any) (string, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return "json", data, nil
}

func (JSONSerializer) Loads(_ string, data []byte, v any) error {
	return json.Unmarshal(data, v)
}
