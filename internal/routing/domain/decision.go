package domain

// State del enrutado de un mensaje.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateMatched    State = "MATCHED"
	StateError      State = "ERROR"
	StateDispatched State = "DISPATCHED"
)

// Outcome distingue en logs y contadores por qué se eligió el destino.
type Outcome string

const (
	OutcomeMatched         Outcome = "matched"
	OutcomeUnmatched       Outcome = "unmatched"
	OutcomeExtractionError Outcome = "extraction_error"
)

// Decision es el resultado de resolver un payload contra la tabla de reglas.
type Decision struct {
	State       State
	Outcome     Outcome
	Key         string
	Destination string
	Err         error
}

// Resolve pasa de RECEIVED a MATCHED o ERROR. Nunca falla: cualquier problema
// acaba en el destino de error.
func (s *RuleSet) Resolve(key string, extractErr error) Decision {
	if extractErr != nil {
		return Decision{
			State:       StateError,
			Outcome:     OutcomeExtractionError,
			Destination: s.errorDestination,
			Err:         extractErr,
		}
	}
	if dest, ok := s.Lookup(key); ok {
		return Decision{State: StateMatched, Outcome: OutcomeMatched, Key: key, Destination: dest}
	}
	return Decision{
		State:       StateError,
		Outcome:     OutcomeUnmatched,
		Key:         key,
		Destination: s.errorDestination,
		Err:         ErrUnmatchedRoute,
	}
}
