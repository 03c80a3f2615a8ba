package memory

import (
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
)

// Memory is the in-memory repository backend. It is the default for
// development and the workhorse of the test suite. All boundaries deep-copy
// so callers can never alias internal state.
type Memory struct {
	person     *personRepository
	face       *faceRepository
	attendance *attendanceRepository
	tokens     *tokenStore
}

var _ interfaces.Repository = &Memory{}

// New creates an empty in-memory repository.
func New() *Memory {
	return &Memory{
		person:     newPersonRepository(),
		face:       newFaceRepository(),
		attendance: newAttendanceRepository(),
		tokens:     newTokenStore(),
	}
}

func (m *Memory) Person() interfaces.PersonRepository {
	return m.person
}

func (m *Memory) Face() interfaces.FaceRepository {
	return m.face
}

func (m *Memory) Attendance() interfaces.AttendanceRepository {
	return m.attendance
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() error {
	return nil
}
