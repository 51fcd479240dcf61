package utils

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Recorder appends JSON lines to a zstd-compressed flight log.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	enc      *zstd.Encoder
	lines    *json.Encoder
	flightID string
	seq      uint64
}

// RecordEnvelope wraps every stored record.
type RecordEnvelope struct {
	FlightID string          `json:"flight_id"`
	Seq      uint64          `json:"seq"`
	Data     json.RawMessage `json:"data"`
}

// NewRecorder creates path and tags every record with a fresh flight id.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Recorder{
		file:     f,
		enc:      enc,
		lines:    json.NewEncoder(enc),
		flightID: uuid.NewString(),
	}, nil
}

func (r *Recorder) FlightID() string { return r.flightID }

// Record appends one entry.
func (r *Recorder) Record(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return errors.New("recorder closed")
	}
	r.seq++
	return r.lines.Encode(RecordEnvelope{FlightID: r.flightID, Seq: r.seq, Data: data})
}

// Close flushes the compressed stream and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	err := r.enc.Close()
	r.enc = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadRecords streams the envelopes of a flight log to fn in order.
func ReadRecords(path string, fn func(RecordEnvelope) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	jd := json.NewDecoder(br)
	for {
		var env RecordEnvelope
		if err := jd.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode record: %w", err)
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}
