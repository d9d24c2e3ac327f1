// Package keys centraliza o formato das chaves Redis compartilhadas entre serviços.
package keys

import "fmt"

// LiveOdds é a chave da odd ao vivo de uma seleção, escrita pelo odds-processor
// e lida pelo bet-service na validação da aposta
func LiveOdds(eventID, market, selection string) string {
	return fmt.Sprintf("odds:%s:%s:%s", eventID, market, selection)
}
