package common

import (
	"encoding/json"
	"fmt"
)

// NodeProperties is the kind specific scalar data shown next to a node.
// Each node kind has exactly one concrete implementation.
type NodeProperties interface {
	NodeKind() NodeKind
}

type InstrumentProperties struct {
	Exchange       string `json:"exchange,omitempty"`
	InstrumentType string `json:"instrument_type,omitempty"`
	ListDate       string `json:"list_date,omitempty"`
}

func (InstrumentProperties) NodeKind() NodeKind { return KindInstrument }

type RegulationProperties struct {
	Authority   string `json:"authority,omitempty"`
	PublishDate string `json:"publish_date,omitempty"`
	ImpactLevel string `json:"impact_level,omitempty"`
	Category    string `json:"category,omitempty"`
}

func (RegulationProperties) NodeKind() NodeKind { return KindRegulation }

type EventProperties struct {
	EventType      string   `json:"event_type,omitempty"`
	PublishDate    string   `json:"publish_date,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
}

func (EventProperties) NodeKind() NodeKind { return KindEvent }

type AssetProperties struct {
	AssetType  string `json:"asset_type,omitempty"`
	Location   string `json:"location,omitempty"`
	OwnerCount int    `json:"owner_count"`
}

func (AssetProperties) NodeKind() NodeKind { return KindAsset }

type EntityProperties struct {
	EntityType   string `json:"entity_type,omitempty"`
	ManagedCount int    `json:"managed_count"`
}

func (EntityProperties) NodeKind() NodeKind { return KindManagingEntity }

// EdgeProperties carries the evidence an edge was derived from. Only the
// fields relevant to the edge kind are set.
type EdgeProperties struct {
	ImpactLevel    string   `json:"impact_level,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
	AssetType      string   `json:"asset_type,omitempty"`
	FundType       string   `json:"fund_type,omitempty"`
}

// EncodeNodeProperties serializes props for a jsonb column.
func EncodeNodeProperties(props NodeProperties) ([]byte, error) {
	if props == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(props)
}

// DecodeNodeProperties restores the concrete properties struct for kind.
// Empty input yields the zero value of that struct.
func DecodeNodeProperties(kind NodeKind, data []byte) (NodeProperties, error) {
	var props NodeProperties
	var err error

	unmarshal := func(v any) error {
		if len(data) == 0 || string(data) == "null" {
			return nil
		}
		return json.Unmarshal(data, v)
	}

	switch kind {
	case KindInstrument:
		var p InstrumentProperties
		err = unmarshal(&p)
		props = p
	case KindRegulation:
		var p RegulationProperties
		err = unmarshal(&p)
		props = p
	case KindEvent:
		var p EventProperties
		err = unmarshal(&p)
		props = p
	case KindAsset:
		var p AssetProperties
		err = unmarshal(&p)
		props = p
	case KindManagingEntity:
		var p EntityProperties
		err = unmarshal(&p)
		props = p
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s properties: %w", kind, err)
	}
	return props, nil
}

// UnmarshalJSON decodes a node, resolving Properties by Kind.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var aux struct {
		plain
		Properties json.RawMessage `json:"properties,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Node(aux.plain)
	if !n.Kind.Valid() {
		return nil
	}
	props, err := DecodeNodeProperties(n.Kind, aux.Properties)
	if err != nil {
		return err
	}
	n.Properties = props
	return nil
}
