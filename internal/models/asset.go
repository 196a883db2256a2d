package models

import "time"

// AssetInfo describes one staged render asset.
type AssetInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum"`
	ModifiedAt time.Time `json:"modified_at"`
}
