package topics

const (
	// Odds
	OddsUpdates = "odds_updates"

	// Bets
	BetPlaced = "bet_placed"

	// Fraude
	FraudAlerts = "fraud_alerts"

	// DLQs
	OddsUpdatesDLQ = "odds_updates_dlq"
)
