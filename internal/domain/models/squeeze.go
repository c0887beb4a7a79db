package models

import "time"

type SqueezeStatus string

const (
	SqueezeBuilding SqueezeStatus = "building"
	SqueezeFiring   SqueezeStatus = "firing"
	SqueezeCooling  SqueezeStatus = "cooling"
)

// CompressionColor grades compression intensity: red = just compressing,
// black = tighter, yellow = tightest, green = firing.
type CompressionColor string

const (
	ColorRed    CompressionColor = "red"
	ColorBlack  CompressionColor = "black"
	ColorYellow CompressionColor = "yellow"
	ColorGreen  CompressionColor = "green"
)

type MomentumDirection string

const (
	BullishAcceleration MomentumDirection = "bullish-acceleration"
	BullishDeceleration MomentumDirection = "bullish-deceleration"
	BearishDeceleration MomentumDirection = "bearish-deceleration"
	BearishAcceleration MomentumDirection = "bearish-acceleration"
)

// IsBullish reports whether the direction has a non-negative momentum sign.
func (d MomentumDirection) IsBullish() bool {
	return d == BullishAcceleration || d == BullishDeceleration
}

// IsAccelerating reports whether momentum magnitude is growing.
func (d MomentumDirection) IsAccelerating() bool {
	return d == BullishAcceleration || d == BearishAcceleration
}

type MomentumColor string

const (
	MomentumAqua   MomentumColor = "aqua"
	MomentumBlue   MomentumColor = "blue"
	MomentumYellow MomentumColor = "yellow"
	MomentumRed    MomentumColor = "red"
)

// Band is an upper/middle/lower channel triple.
type Band struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Width returns Upper - Lower.
func (b Band) Width() float64 { return b.Upper - b.Lower }

type Momentum struct {
	Value     float64           `json:"value"`
	Previous  float64           `json:"previous"`
	Color     MomentumColor     `json:"color"`
	Direction MomentumDirection `json:"direction"`
}

// SqueezeState is the per-timeframe volatility compression reading.
// It is recomputed on every query and never persisted.
type SqueezeState struct {
	Timeframe        string           `json:"timeframe"`
	Group            string           `json:"group"`
	Status           SqueezeStatus    `json:"status"`
	Color            CompressionColor `json:"color"`
	Bollinger        Band             `json:"bollinger"`
	Keltner          Band             `json:"keltner"`
	BollingerWidth   float64          `json:"bollinger_width"`
	KeltnerWidth     float64          `json:"keltner_width"`
	CompressionLevel float64          `json:"compression_level"`
	IsSqueezed       bool             `json:"is_squeezed"`
	Momentum         Momentum         `json:"momentum"`
	Bars             int              `json:"bars"`
	Approximated     bool             `json:"approximated"`
}

type SqueezeConsensus struct {
	SqueezedPct  float64  `json:"squeezed_pct"`
	FiringPct    float64  `json:"firing_pct"`
	BuildingPct  float64  `json:"building_pct"`
	Squeezed     int      `json:"squeezed"`
	Firing       int      `json:"firing"`
	Building     int      `json:"building"`
	RedCount     int      `json:"red_count"`
	YellowCount  int      `json:"yellow_count"`
	BullishCount int      `json:"bullish_count"`
	BearishCount int      `json:"bearish_count"`
	Dominant     string   `json:"dominant"` // bullish | bearish | neutral
	Reasoning    []string `json:"reasoning"`
}

type MomentumCascade struct {
	Detected    bool   `json:"detected"`
	Direction   string `json:"direction,omitempty"` // continuation | reversal
	Description string `json:"description,omitempty"`
}

type SignatureMatch struct {
	Name        string  `json:"name"`
	SuccessRate float64 `json:"success_rate"`
	Label       string  `json:"label"`
	Distance    int     `json:"distance"`
	Similarity  float64 `json:"similarity"`
}

type MultiTimeframeSqueezeAnalysis struct {
	Symbol       string              `json:"symbol"`
	Timestamp    time.Time           `json:"timestamp"`
	Timeframes   []SqueezeState      `json:"timeframes"`
	Groups       map[string][]string `json:"groups"`
	Consensus    SqueezeConsensus    `json:"consensus"`
	Cascade      MomentumCascade     `json:"cascade"`
	Signature    SignatureMatch      `json:"signature"`
	Approximated bool                `json:"approximated"`
}
