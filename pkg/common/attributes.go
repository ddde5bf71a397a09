package common

// Type attribute records hold the full set of kind specific fields for a
// node. Each is stored 1:1 with its node, keyed by NodeID.

type InstrumentAttributes struct {
	NodeID          int64   `json:"node_id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Exchange        string  `json:"exchange,omitempty"`
	InstrumentType  string  `json:"instrument_type,omitempty"`
	ListDate        string  `json:"list_date,omitempty"`
	IssueSize       float64 `json:"issue_size,omitempty"`
	UnderlyingAsset string  `json:"underlying_asset,omitempty"`
	AssetType       string  `json:"asset_type,omitempty"`
	AssetLocation   string  `json:"asset_location,omitempty"`
	ManagerName     string  `json:"manager_name,omitempty"`
	ManagerType     string  `json:"manager_type,omitempty"`
}

type RegulationAttributes struct {
	NodeID             int64    `json:"node_id"`
	DocumentNumber     string   `json:"document_number,omitempty"`
	Title              string   `json:"title"`
	Authority          string   `json:"authority,omitempty"`
	PublishDate        string   `json:"publish_date,omitempty"`
	ImpactLevel        string   `json:"impact_level,omitempty"`
	Category           string   `json:"category,omitempty"`
	RelatedInstruments []string `json:"related_instruments"`
	SourceID           string   `json:"source_id,omitempty"`
}

type EventAttributes struct {
	NodeID              int64    `json:"node_id"`
	EventType           string   `json:"event_type"`
	Title               string   `json:"title"`
	PublishDate         string   `json:"publish_date,omitempty"`
	SentimentLabel      string   `json:"sentiment_label,omitempty"`
	SentimentScore      *float64 `json:"sentiment_score,omitempty"`
	AffectedInstruments []string `json:"affected_instruments"`
	URL                 string   `json:"url,omitempty"`
	SourceID            string   `json:"source_id,omitempty"`
}

type AssetAttributes struct {
	NodeID    int64    `json:"node_id"`
	Name      string   `json:"name"`
	AssetType string   `json:"asset_type,omitempty"`
	Location  string   `json:"location,omitempty"`
	OwnedBy   []string `json:"owned_by"`
}

type EntityAttributes struct {
	NodeID       int64    `json:"node_id"`
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type,omitempty"`
	Managed      []string `json:"managed"`
	ManagedCount int      `json:"managed_count"`
}
