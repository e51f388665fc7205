package kraken

// AssetInfo is a single entry of Kraken's Assets directory.
type AssetInfo struct {
	Altname string `json:"altname"`
	// Other fields pruned
}

// TickerInfo is Kraken's raw ticker payload for one pair.
type TickerInfo struct {
	Ask             []string `json:"a"` // [price, wholeLotVolume, lotVolume]
	Bid             []string `json:"b"` // [price, wholeLotVolume, lotVolume]
	LastTradeClosed []string `json:"c"` // [price, lotVolume]
	OpenPrice       string   `json:"o"`
}
