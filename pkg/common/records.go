package common

// Raw records as delivered by the record source. They are validated upstream;
// the graph engine never re-validates them.

type InstrumentRecord struct {
	ID              string  `json:"id"`
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
	Valid           bool    `json:"valid"`
}

type RegulationRecord struct {
	ID                 string   `json:"id"`
	DocumentNumber     string   `json:"document_number,omitempty"`
	Title              string   `json:"title"`
	Authority          string   `json:"authority,omitempty"`
	PublishDate        string   `json:"publish_date,omitempty"`
	ImpactLevel        string   `json:"impact_level,omitempty"`
	Category           string   `json:"category,omitempty"`
	RelatedInstruments []string `json:"related_instruments,omitempty"`
	Valid              bool     `json:"valid"`
}

// Event types distinguish the two event record streams.
const (
	EventTypeNews         = "news"
	EventTypeAnnouncement = "announcement"
)

type EventRecord struct {
	ID                  string   `json:"id"`
	EventType           string   `json:"event_type,omitempty"`
	Title               string   `json:"title"`
	PublishDate         string   `json:"publish_date,omitempty"`
	SentimentLabel      string   `json:"sentiment_label,omitempty"`
	SentimentScore      *float64 `json:"sentiment_score,omitempty"`
	AffectedInstruments []string `json:"affected_instruments,omitempty"`
	URL                 string   `json:"url,omitempty"`
	Valid               bool     `json:"valid"`
}

// Source tables used as node provenance.
const (
	SourceTableInstruments   = "raw_instrument_records"
	SourceTableRegulations   = "raw_regulation_records"
	SourceTableNews          = "raw_news_records"
	SourceTableAnnouncements = "raw_announcement_records"
)
