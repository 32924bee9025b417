package models

// WarmupAsset is one item in a bulk preload batch.
type WarmupAsset struct {
	Key      string
	Data     []byte
	Priority Priority
	Tags     []string
}
