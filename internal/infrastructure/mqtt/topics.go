package mqtt

import "fmt"

// DefaultTopicPrefix roots every topic when mqtt.topic_prefix is empty.
const DefaultTopicPrefix = "ams"

// Topics builds the AMS topic tree under a configurable prefix.
//
//	ams/events/transfer/{event_type}   transfer lifecycle events
//	ams/assets/{asset_id}/owner        retained current owner
//	ams/system/status                  retained online/offline status (LWT)
//
// Example:
//
//	topics := mqtt.NewTopics("ams")
//	topic := topics.TransferEvent("TransferExecuted")
//	// Returns: "ams/events/transfer/TransferExecuted"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// TransferEvent returns the topic for one transfer event type.
//
// Example: ams/events/transfer/TransferInitiated
func (t Topics) TransferEvent(eventType string) string {
	return fmt.Sprintf("%s/events/transfer/%s", t.prefix(), eventType)
}

// AssetOwner returns the retained ownership topic of an asset.
//
// Example: ams/assets/asset101/owner
func (t Topics) AssetOwner(assetID string) string {
	return fmt.Sprintf("%s/assets/%s/owner", t.prefix(), assetID)
}

// SystemStatus returns the service status topic.
//
// Example: ams/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllTransferEvents matches every transfer event.
//
// Pattern: ams/events/transfer/+
func (t Topics) AllTransferEvents() string {
	return fmt.Sprintf("%s/events/transfer/+", t.prefix())
}

// AllAssetOwners matches the ownership topic of every asset.
//
// Pattern: ams/assets/+/owner
func (t Topics) AllAssetOwners() string {
	return fmt.Sprintf("%s/assets/+/owner", t.prefix())
}

// AllTopics matches everything under the prefix.
// Use with caution - this receives ALL traffic.
//
// Pattern: ams/#
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
