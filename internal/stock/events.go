package stock

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/gin-contrib/sse"
)

// Event names emitted by the stock endpoint.
const (
	EventSnapshot = "stock:snapshot"
	EventUpdate   = "stock:update"
)

const maxFrameSize = 1 << 20

var errFrameTooLarge = errors.New("event frame exceeds 1MiB")

// Record is one product's stock level as carried by stock events.
type Record struct {
	ProductID string
	Stock     int
}

type wireRecord struct {
	ProductID string          `json:"productId"`
	Stock     json.RawMessage `json:"stock"`
}

// frameReader splits an event stream into frames separated by blank lines.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// next returns the decoded events of the next frame. Comment-only frames
// decode to no events.
func (f *frameReader) next() ([]sse.Event, error) {
	var frame bytes.Buffer

	for {
		line, err := f.r.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 && frame.Len() > 0 && err == nil {
			return sse.Decode(&frame)
		}
		if len(line) > 0 {
			frame.Write(line)
			frame.WriteByte('\n')
			if frame.Len() > maxFrameSize {
				return nil, errFrameTooLarge
			}
		}

		if err != nil {
			if frame.Len() > 0 && errors.Is(err, io.EOF) {
				return sse.Decode(&frame)
			}
			return nil, err
		}
	}
}

// parseRecords decodes the payload of a snapshot or update event. Records
// without a product are dropped and stock values are clamped to be
// nonnegative.
func parseRecords(event, data string) ([]Record, error) {
	var wire []wireRecord

	switch event {
	case EventSnapshot:
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			return nil, err
		}
	case EventUpdate:
		var single wireRecord
		if err := json.Unmarshal([]byte(data), &single); err != nil {
			return nil, err
		}
		wire = []wireRecord{single}
	default:
		return nil, nil
	}

	records := make([]Record, 0, len(wire))
	for _, w := range wire {
		if w.ProductID == "" {
			continue
		}
		records = append(records, Record{ProductID: w.ProductID, Stock: clampStock(w.Stock)})
	}
	return records, nil
}

// clampStock reads a stock value that may be a number or a numeric string.
// Negative and malformed values become 0.
func clampStock(raw json.RawMessage) int {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		if n, err = strconv.ParseFloat(s, 64); err != nil {
			return 0
		}
	}

	if math.IsNaN(n) || n <= 0 {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(n))
}
