package handlers

import (
	"github.com/feichai0017/deck-recovery/internal/service/recovery"
	"github.com/feichai0017/deck-recovery/pkg/logger"
)

type Handlers struct {
	Recovery *RecoveryHandler
}

func NewHandlers(
	recoveryService recovery.DeckRecoverer,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Recovery: NewRecoveryHandler(recoveryService, log),
	}
}
