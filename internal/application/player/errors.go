package player

import "github.com/mosswell/world-service/internal/domain"

// Edge error codes for the move and look operations. These spellings are
// the API contract; clients switch on them.
const (
	CodeMissingPlayerID         domain.ErrCode = "MissingPlayerId"
	CodeInvalidPlayerID         domain.ErrCode = "InvalidPlayerId"
	CodeInvalidDirection        domain.ErrCode = "InvalidDirection"
	CodeAmbiguousDirection      domain.ErrCode = "AmbiguousDirection"
	CodeFromNotFound            domain.ErrCode = "FromNotFound"
	CodeNoExit                  domain.ErrCode = "NoExit"
	CodeExitGenerationRequested domain.ErrCode = "ExitGenerationRequested"
	CodeMoveFailed              domain.ErrCode = "MoveFailed"
)

func moveErr(code domain.ErrCode, msg string, meta map[string]string) error {
	return &domain.AppError{Code: code, Message: msg, Meta: meta}
}
