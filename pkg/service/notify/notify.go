package notify

import (
	"context"

	"github.com/seiyo-lab/kaoban/pkg/domain/model"
)

// Service announces attendance events to operators. The pipeline dispatches
// notifications asynchronously and never fails a detection on a notification
// error, so implementations only need to report failures for logging.
type Service interface {
	// NotifyArrival announces a newly recorded arrival. person may be nil
	// when the registry entry was deleted after the record was written.
	NotifyArrival(ctx context.Context, person *model.Person, record *model.AttendanceRecord) error

	// NotifyDeparture announces a newly recorded departure.
	NotifyDeparture(ctx context.Context, person *model.Person, departure *model.Departure) error

	// NotifySummary announces the end-of-day attendance summary.
	NotifySummary(ctx context.Context, summary *model.DaySummary) error
}

// Discard drops every notification. It is the default when no Slack
// credentials are configured.
type Discard struct{}

var _ Service = Discard{}

func (Discard) NotifyArrival(ctx context.Context, person *model.Person, record *model.AttendanceRecord) error {
	return nil
}

func (Discard) NotifyDeparture(ctx context.Context, person *model.Person, departure *model.Departure) error {
	return nil
}

func (Discard) NotifySummary(ctx context.Context, summary *model.DaySummary) error {
	return nil
}
