package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/slack-go/slack"
)

const timeLayout = "15:04:05"

// slackService posts attendance events to a single Slack channel.
type slackService struct {
	api     *slack.Client
	channel string
	loc     *time.Location
}

// SlackOption is a functional option for the Slack notifier.
type SlackOption func(*slackService)

// WithTimezone sets the location used to render event times. Defaults to
// the process-local timezone.
func WithTimezone(loc *time.Location) SlackOption {
	return func(x *slackService) {
		if loc != nil {
			x.loc = loc
		}
	}
}

// NewSlack creates a Slack notifier posting to the given channel.
func NewSlack(token, channel string, opts ...SlackOption) (Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if channel == "" {
		return nil, goerr.New("Slack channel is required")
	}

	x := &slackService{
		api:     slack.New(token),
		channel: channel,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

func (x *slackService) NotifyArrival(ctx context.Context, person *model.Person, record *model.AttendanceRecord) error {
	name := displayName(person, record.PersonID)
	fallback := fmt.Sprintf("%s arrived at %s", name, record.ArrivedAt.In(x.loc).Format(timeLayout))
	return x.post(ctx, buildArrivalBlocks(person, record, x.loc), fallback)
}

func (x *slackService) NotifyDeparture(ctx context.Context, person *model.Person, departure *model.Departure) error {
	name := displayName(person, departure.PersonID)
	fallback := fmt.Sprintf("%s left at %s", name, departure.LeftAt.In(x.loc).Format(timeLayout))
	return x.post(ctx, buildDepartureBlocks(person, departure, x.loc), fallback)
}

func (x *slackService) NotifySummary(ctx context.Context, summary *model.DaySummary) error {
	fallback := fmt.Sprintf("Attendance %s: %d arrived, %d left, %d present",
		summary.Date, summary.Arrivals, summary.Departures, summary.Present)
	return x.post(ctx, buildSummaryBlocks(summary), fallback)
}

func (x *slackService) post(ctx context.Context, blocks []slack.Block, fallback string) error {
	_, _, err := x.api.PostMessageContext(ctx, x.channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fallback, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post Slack message", goerr.V("channel", x.channel))
	}
	return nil
}

// displayName prefers the registry name and falls back to the raw ID when
// the person was deleted after the event was written.
func displayName(person *model.Person, id model.PersonID) string {
	if person != nil && person.Name != "" {
		return person.Name
	}
	return id.String()
}

// buildArrivalBlocks constructs Block Kit blocks for an arrival notification
func buildArrivalBlocks(person *model.Person, record *model.AttendanceRecord, loc *time.Location) []slack.Block {
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Date:*\n"+record.Date.String(), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Time:*\n"+record.ArrivedAt.In(loc).Format(timeLayout), false, false),
	}
	if person != nil && person.Department != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Department:*\n"+person.Department, false, false))
	}
	if record.Source != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Source:*\n"+record.Source, false, false))
	}

	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, "Arrival: "+displayName(person, record.PersonID), true, false),
		),
		slack.NewSectionBlock(nil, fields, nil),
	}
}

// buildDepartureBlocks constructs Block Kit blocks for a departure notification
func buildDepartureBlocks(person *model.Person, departure *model.Departure, loc *time.Location) []slack.Block {
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Date:*\n"+departure.Date.String(), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Time:*\n"+departure.LeftAt.In(loc).Format(timeLayout), false, false),
	}
	if departure.Source != "" {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, "*Source:*\n"+departure.Source, false, false))
	}

	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, "Departure: "+displayName(person, departure.PersonID), true, false),
		),
		slack.NewSectionBlock(nil, fields, nil),
	}
}

// buildSummaryBlocks constructs Block Kit blocks for the day summary
func buildSummaryBlocks(summary *model.DaySummary) []slack.Block {
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Arrivals:*\n%d", summary.Arrivals), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Departures:*\n%d", summary.Departures), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Still present:*\n%d", summary.Present), false, false),
	}

	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, "Attendance summary "+summary.Date.String(), true, false),
		),
		slack.NewSectionBlock(nil, fields, nil),
	}
}
