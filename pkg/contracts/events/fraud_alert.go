package events

import "time"

// Tipos de alerta emitidos pelo detector de fraude
const (
	AlertVelocity  = "VELOCITY"
	AlertMagnitude = "MAGNITUDE"
)

// Evento publicado no tópico "fraud_alerts". É informativo: nenhuma aposta é revertida.
type FraudAlert struct {
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	Stake      string    `json:"stake"`
	Observed   string    `json:"observed"`  // contagem na janela ou stake média
	Threshold  string    `json:"threshold"` // limite configurado que foi ultrapassado
	DetectedAt time.Time `json:"detected_at"`
}
