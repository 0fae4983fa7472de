// Package models defines the records persisted to the history database.
package models

import (
	"time"

	"github.com/woozymasta/craftping/internal/ping"
)

// Record is one stored query result for a server.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Address      string    `json:"address"`
	ResolvedAddr string    `json:"resolved_addr"`
	Description  string    `json:"description"`
	VersionName  string    `json:"version_name"`
	CountryCode  string    `json:"country_code,omitempty"`

	// LatencyMS is nil when the refinement connection failed and no clean
	// latency sample exists.
	LatencyMS *float64 `json:"latency_ms,omitempty"`

	// IconHash is the xxhash64 of the favicon URI, nil when the server has
	// no icon. Stored as int64 to fit a SQLite INTEGER column.
	IconHash *int64 `json:"icon_hash,omitempty"`

	Protocol int `json:"protocol"`
	Online   int `json:"online"`
	Max      int `json:"max"`
}

// NewRecord builds a history record from a completed query.
func NewRecord(address, resolvedAddr string, res *ping.Result, country string) Record {
	rec := Record{
		Timestamp:    time.Now().UTC(),
		Address:      address,
		ResolvedAddr: resolvedAddr,
		Description:  res.Status.Description,
		VersionName:  res.Status.VersionName,
		Protocol:     res.Status.VersionProtocol,
		Online:       res.Status.PlayersOnline,
		Max:          res.Status.PlayersMax,
		CountryCode:  country,
	}

	if res.HasLatency {
		ms := float64(res.Latency.Microseconds()) / 1000
		rec.LatencyMS = &ms
	}

	if hash := res.Status.IconHash(); hash != 0 {
		signed := int64(hash)
		rec.IconHash = &signed
	}

	return rec
}
