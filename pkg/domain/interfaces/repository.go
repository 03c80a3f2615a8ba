package interfaces

import (
	"context"

	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
)

// Repository defines the interface for data persistence
type Repository interface {
	Person() PersonRepository
	Face() FaceRepository
	Attendance() AttendanceRepository

	// Auth methods
	PutToken(ctx context.Context, token *auth.Token) error
	GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error)
	DeleteToken(ctx context.Context, tokenID auth.TokenID) error

	// Close releases backend resources. Safe to call once at shutdown.
	Close() error
}
