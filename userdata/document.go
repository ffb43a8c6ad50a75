package userdata

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

const songIDField = "songId"

var (
	ErrNotFound      = errors.New("userdata: document not found")
	ErrMissingSongID = errors.New("userdata: songId missing")
	ErrInvalidSongID = errors.New("userdata: songId is not an integer")
)

var numberAPI = sonic.Config{UseNumber: true}.Froze()

// Document is the raw JSON a user stores under a namespace, e.g. {"songId": 42}.
type Document []byte

func NewSongDocument(songID int64) (Document, error) {
	b, err := sonic.Marshal(map[string]int64{songIDField: songID})
	if err != nil {
		return nil, fmt.Errorf("userdata: marshal document: %w", err)
	}
	return Document(b), nil
}

// SongID returns the integer stored under "songId". The value is returned as
// is; callers decide what a non-positive id means.
func (d Document) SongID() (int64, error) {
	if len(d) == 0 {
		return 0, ErrMissingSongID
	}
	var fields map[string]any
	if err := numberAPI.Unmarshal(d, &fields); err != nil {
		return 0, fmt.Errorf("userdata: unmarshal document: %w", err)
	}
	raw, ok := fields[songIDField]
	if !ok || raw == nil {
		return 0, ErrMissingSongID
	}
	num, ok := raw.(json.Number)
	if !ok {
		return 0, ErrInvalidSongID
	}
	id, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSongID, num)
	}
	return id, nil
}
