// Package status parses the JSON status document carried by the server list
// ping response packet.
package status

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/woozymasta/craftping/internal/protocol"
)

var (
	// ErrLengthMismatch is returned when the VarInt string length in the
	// response payload disagrees with the actual number of bytes.
	ErrLengthMismatch = errors.New("status payload length mismatch")

	// ErrMissingFields is returned when the status document lacks one of the
	// description, players or version objects.
	ErrMissingFields = errors.New("status document missing required fields")
)

// Status is the parsed server status. Built once per successful exchange and
// not mutated afterwards.
type Status struct {
	Description     string
	VersionName     string
	VersionProtocol int
	PlayersOnline   int
	PlayersMax      int
	Sample          []string
	Icon            string
}

// rawStatus mirrors the wire JSON. The required objects are pointers so a
// missing section is distinguishable from legitimate zero values inside it.
type rawStatus struct {
	Description *struct {
		Text string `json:"text"`
	} `json:"description"`
	Players *struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
		} `json:"sample"`
	} `json:"players"`
	Version *struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Favicon string `json:"favicon"`
}

// Parse decodes a status response payload: a VarInt length followed by
// exactly that many bytes of UTF-8 JSON.
func Parse(payload []byte) (*Status, error) {
	declared, doc, err := protocol.DecodeVarInt(payload)
	if err != nil {
		return nil, fmt.Errorf("status length: %w", err)
	}
	if int(declared) != len(doc) {
		return nil, fmt.Errorf("%w: declared %d, got %d bytes", ErrLengthMismatch, declared, len(doc))
	}

	var raw rawStatus
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("status document: %w", err)
	}
	if raw.Description == nil || raw.Players == nil || raw.Version == nil {
		return nil, ErrMissingFields
	}

	st := &Status{
		Description:     raw.Description.Text,
		VersionName:     raw.Version.Name,
		VersionProtocol: raw.Version.Protocol,
		PlayersOnline:   raw.Players.Online,
		PlayersMax:      raw.Players.Max,
		Sample:          []string{},
		Icon:            raw.Favicon,
	}

	// Servers may omit the sample even with players online; an empty list is
	// more useful than failing the whole query. With nobody online any
	// sample the server sends is stale, so it is discarded.
	if raw.Players.Online > 0 {
		for _, p := range raw.Players.Sample {
			st.Sample = append(st.Sample, p.Name)
		}
	}

	return st, nil
}
