package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/uncover/pkg/primary"
	"github.com/Sternrassler/uncover/pkg/segment"
	"github.com/klauspost/compress/zstd"
)

// State blob layout: magic, one version byte, zstd-compressed JSON.
var stateMagic = []byte("UNCV")

const stateVersion byte = 1

// The codecs are shared; EncodeAll and DecodeAll are safe for concurrent use.
var (
	stateEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	stateDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	})
)

// persisted is the JSON body of a state blob, fields in restore order.
type persisted struct {
	PageSize         int             `json:"page_size"`
	Size             int             `json:"size"`
	Query            primary.Query   `json:"query"`
	HasQuery         bool            `json:"has_query"`
	Placeholder      json.RawMessage `json:"placeholder,omitempty"`
	FirstQueryResult bool            `json:"first_query_result"`
	Segments         json.RawMessage `json:"segments,omitempty"`
}

// GetState serializes page size, size estimate, query, placeholder,
// first-result flag and the segment cache into one opaque blob. Items (and
// the placeholder) that do not encode as JSON are left out; the rest of the
// state is still written.
func (m *Model[T]) GetState() ([]byte, error) {
	m.mu.RLock()
	p := persisted{
		PageSize:         m.PageSize(),
		Size:             m.size,
		Query:            m.query,
		HasQuery:         m.hasQuery,
		FirstQueryResult: m.first,
	}
	placeholder := m.placeholder
	snapshots := make([]segment.Snapshot[T], 0, len(m.segments))
	for _, seg := range m.resolvedLocked() {
		snapshots = append(snapshots, seg.Snapshot())
	}
	m.mu.RUnlock()

	if raw, err := json.Marshal(placeholder); err == nil {
		p.Placeholder = raw
	} else {
		m.logger.Warn().Err(err).Msg("Placeholder not serializable, omitted from state")
	}
	if raw, err := json.Marshal(snapshots); err == nil {
		p.Segments = raw
	} else {
		m.logger.Warn().Err(err).Msg("Items not serializable, writing empty segment cache")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	enc, err := stateEncoder()
	if err != nil {
		return nil, fmt.Errorf("create state encoder: %w", err)
	}

	blob := make([]byte, 0, len(stateMagic)+1+len(body)/2)
	blob = append(blob, stateMagic...)
	blob = append(blob, stateVersion)
	return enc.EncodeAll(body, blob), nil
}

// SetState restores a blob written by GetState. On any decode failure the
// model falls back to an empty state without query and returns an error
// wrapping ErrInvalidState for information; the model stays usable.
func (m *Model[T]) SetState(blob []byte) error {
	p, placeholder, snapshots, err := decodeState[T](blob)
	if err != nil {
		modelStateDecodeFailuresTotal.Inc()
		m.logger.Warn().Err(err).Int("bytes", len(blob)).Msg("Failed to read state, starting empty")

		m.mu.Lock()
		m.resetLocked()
		m.query = ""
		m.hasQuery = false
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	m.mu.Lock()
	m.resetLocked()
	m.pageSize.Store(int64(p.PageSize))
	m.size = p.Size
	m.query = p.Query
	m.hasQuery = p.HasQuery
	if placeholder != nil {
		m.placeholder = *placeholder
	}
	m.first = p.FirstQueryResult

	restored := make([]*segment.Available[T], 0, len(snapshots))
	for _, s := range snapshots {
		seg := segment.Restore[T](m, s)
		m.segments[s.Page] = seg
		restored = append(restored, seg)
	}
	m.coordinator.Restore(restored)
	size := m.size
	cached := len(m.segments)
	m.mu.Unlock()

	modelSegmentsCached.Set(float64(cached))
	m.logger.Info().
		Str("query", p.Query.String()).
		Int("size", size).
		Int("segments", cached).
		Msg("State restored")

	if size > 0 {
		m.consumer.RangeChanged(0, size)
	}
	return nil
}

func decodeState[T any](blob []byte) (persisted, *T, []segment.Snapshot[T], error) {
	var p persisted

	if len(blob) < len(stateMagic)+1 || !bytes.Equal(blob[:len(stateMagic)], stateMagic) {
		return p, nil, nil, errors.New("not a model state blob")
	}
	if v := blob[len(stateMagic)]; v != stateVersion {
		return p, nil, nil, fmt.Errorf("unsupported state version %d", v)
	}

	dec, err := stateDecoder()
	if err != nil {
		return p, nil, nil, fmt.Errorf("create state decoder: %w", err)
	}
	body, err := dec.DecodeAll(blob[len(stateMagic)+1:], nil)
	if err != nil {
		return p, nil, nil, fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, nil, nil, fmt.Errorf("decode: %w", err)
	}
	if p.PageSize < 1 {
		return p, nil, nil, fmt.Errorf("%w (got %d)", ErrInvalidPageSize, p.PageSize)
	}

	var placeholder *T
	if len(p.Placeholder) > 0 {
		var v T
		if err := json.Unmarshal(p.Placeholder, &v); err != nil {
			return p, nil, nil, fmt.Errorf("decode placeholder: %w", err)
		}
		placeholder = &v
	}

	var snapshots []segment.Snapshot[T]
	if len(p.Segments) > 0 {
		if err := json.Unmarshal(p.Segments, &snapshots); err != nil {
			return p, nil, nil, fmt.Errorf("decode segments: %w", err)
		}
	}
	kept := snapshots[:0]
	for _, s := range snapshots {
		if s.Page >= 0 && s.State == segment.StateResolved {
			kept = append(kept, s)
		}
	}
	return p, placeholder, kept, nil
}
