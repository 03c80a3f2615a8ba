package usecase

import (
	"time"

	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/service/archive"
	"github.com/seiyo-lab/kaoban/pkg/service/facematch"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/service/notify"
)

type UseCases struct {
	repo      interfaces.Repository
	notifier  notify.Service
	archiver  archive.Service
	cooldown  time.Duration
	threshold float64

	Attendance *AttendanceUseCase
	Enroll     *EnrollUseCase
	Report     *ReportUseCase
	Auth       *AuthUseCase
}

type Option func(*UseCases)

// WithNotifier routes recorded arrivals and departures to the given
// notifier. Defaults to notify.Discard.
func WithNotifier(notifier notify.Service) Option {
	return func(uc *UseCases) {
		uc.notifier = notifier
	}
}

// WithArchive stores enrollment photos through the given archive.
func WithArchive(archiver archive.Service) Option {
	return func(uc *UseCases) {
		uc.archiver = archiver
	}
}

// WithCooldown suppresses repeat detections of the same person within the
// given duration. Zero (the default) disables the cooldown.
func WithCooldown(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.cooldown = d
	}
}

// WithThreshold sets the acceptance distance used by the enrollment
// duplicate-identity warning. It should match the matcher threshold;
// defaults to facematch.DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(uc *UseCases) {
		if threshold > 0 {
			uc.threshold = threshold
		}
	}
}

// WithAuth enables operator authentication.
func WithAuth(auth *AuthUseCase) Option {
	return func(uc *UseCases) {
		uc.Auth = auth
	}
}

func New(repo interfaces.Repository, gallery *facematch.Gallery, matcher facematch.Matcher, recorder *ledger.Recorder, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:      repo,
		notifier:  notify.Discard{},
		threshold: facematch.DefaultThreshold,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Attendance = NewAttendanceUseCase(repo, matcher, recorder, uc.notifier, uc.cooldown)
	uc.Enroll = NewEnrollUseCase(repo, gallery, uc.threshold, uc.archiver)
	uc.Report = NewReportUseCase(repo, recorder.Timezone())

	return uc
}
