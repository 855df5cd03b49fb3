// Package publish sends classification results to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/yildizm/glimpse/internal/capture"
	"github.com/yildizm/glimpse/internal/vision"
)

// Payload formats
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Guess is one entry of the top-k list.
type Guess struct {
	Label       string  `json:"label" msgpack:"label"`
	Probability float64 `json:"probability" msgpack:"probability"`
}

// Message is the payload published for every classified frame.
type Message struct {
	Label       string    `json:"label" msgpack:"label"`
	Probability float64   `json:"probability" msgpack:"probability"`
	TopK        []Guess   `json:"top_k" msgpack:"top_k"`
	Seq         uint64    `json:"seq" msgpack:"seq"`
	TraceID     string    `json:"trace_id,omitempty" msgpack:"trace_id,omitempty"`
	Source      string    `json:"source,omitempty" msgpack:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp" msgpack:"timestamp"`
}

// NewMessage builds a message from a frame and its results. Only frame
// metadata is read, so the frame may be disposed afterwards.
func NewMessage(frame *capture.Frame, results []vision.Result) Message {
	msg := Message{
		TopK:      make([]Guess, len(results)),
		Timestamp: time.Now().UTC(),
	}
	for i, r := range results {
		msg.TopK[i] = Guess{Label: r.Label, Probability: r.Probability}
	}
	if len(results) > 0 {
		msg.Label = results[0].Label
		msg.Probability = results[0].Probability
	}
	if frame != nil {
		msg.Seq = frame.Seq
		msg.TraceID = frame.TraceID
		msg.Source = frame.Source
		if !frame.Timestamp.IsZero() {
			msg.Timestamp = frame.Timestamp.UTC()
		}
	}
	return msg
}

// Encode serializes msg in the given format.
func Encode(msg Message, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.Marshal(msg)
	case FormatMsgpack:
		return msgpack.Marshal(msg)
	default:
		return nil, fmt.Errorf("publish: unknown format %q", format)
	}
}

// Decode parses a payload produced by Encode.
func Decode(data []byte, format string) (Message, error) {
	var msg Message
	var err error
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &msg)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &msg)
	default:
		return msg, fmt.Errorf("publish: unknown format %q", format)
	}
	return msg, err
}
