package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/seiyo-lab/kaoban/pkg/cli/config"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// replayLine is one JSONL entry of a capture log. Enroll lines build the
// gallery; detection lines (the default type) run through the pipeline in
// file order.
type replayLine struct {
	Type       string    `json:"type"` // "enroll" or "detection"
	Person     string    `json:"person"`
	Encoding   []float64 `json:"encoding"`
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source"`
	Mode       string    `json:"mode"` // "arrival" (default) or "departure"
}

var (
	recordedColor     = color.New(color.FgGreen, color.Bold)
	duplicateColor    = color.New(color.FgYellow)
	unrecognizedColor = color.New(color.FgRed)
	throttledColor    = color.New(color.FgCyan)
	rejectedColor     = color.New(color.FgMagenta)
)

func cmdReplay() *cli.Command {
	var input string
	var policyPath string
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Usage:       "JSONL capture log to replay (\"-\" for stdin)",
			Required:    true,
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the site policy TOML file",
			Sources:     cli.EnvVars("KAOBAN_POLICY"),
			Destination: &policyPath,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "replay",
		Aliases: []string{"r"},
		Usage:   "Replay a capture log through the pipeline (memory backend makes it a dry run)",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pol, err := loadPolicy(policyPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			gallery, matcher, recorder, err := buildCore(ctx, repo, pol)
			if err != nil {
				return err
			}
			enrollUC := usecase.NewEnrollUseCase(repo, gallery, pol.Matcher.Threshold, nil)
			attendUC := usecase.NewAttendanceUseCase(repo, matcher, recorder, nil, pol.Attendance.CooldownDuration())

			var r io.Reader
			if input == "-" {
				r = os.Stdin
			} else {
				f, err := os.Open(input)
				if err != nil {
					return goerr.Wrap(err, "failed to open capture log", goerr.V("input", input))
				}
				defer func() {
					_ = f.Close()
				}()
				r = f
			}

			return replayLog(ctx, r, enrollUC, attendUC)
		},
	}
}

// replayLog feeds the capture log through the pipeline line by line,
// printing one outcome per detection and a tally at the end.
func replayLog(ctx context.Context, r io.Reader, enrollUC *usecase.EnrollUseCase, attendUC *usecase.AttendanceUseCase) error {
	// Names make the output readable; the pipeline itself only sees IDs.
	names := make(map[model.PersonID]string)
	byName := make(map[string]model.PersonID)

	tally := make(map[string]int)
	lineNo := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var line replayLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return goerr.Wrap(err, "malformed capture log line", goerr.V("line", lineNo))
		}

		switch line.Type {
		case "enroll":
			if err := replayEnroll(ctx, enrollUC, &line, names, byName); err != nil {
				return goerr.Wrap(err, "failed to enroll", goerr.V("line", lineNo))
			}

		case "", "detection":
			detection := &model.Detection{
				Encoding:   types.Encoding(line.Encoding),
				CapturedAt: line.CapturedAt,
				Source:     line.Source,
			}

			switch line.Mode {
			case "", "arrival":
				outcome, err := attendUC.ProcessDetection(ctx, detection)
				if err != nil {
					return goerr.Wrap(err, "failed to process detection", goerr.V("line", lineNo))
				}
				printOutcome(lineNo, string(outcome.Kind), names[outcome.PersonID], outcome.Distance)
				tally[string(outcome.Kind)]++

			case "departure":
				outcome, err := attendUC.ProcessDeparture(ctx, detection)
				if err != nil {
					return goerr.Wrap(err, "failed to process departure", goerr.V("line", lineNo))
				}
				printOutcome(lineNo, string(outcome.Kind), names[outcome.PersonID], outcome.Distance)
				tally[string(outcome.Kind)]++

			default:
				return goerr.New("mode must be arrival or departure",
					goerr.V("line", lineNo), goerr.V("mode", line.Mode))
			}

		default:
			return goerr.New("type must be enroll or detection",
				goerr.V("line", lineNo), goerr.V("type", line.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read capture log")
	}

	fmt.Println()
	for _, kind := range replayTallyOrder() {
		if n, ok := tally[kind]; ok {
			fmt.Printf("%-16s %d\n", kind, n)
		}
	}
	return nil
}

func replayEnroll(ctx context.Context, enrollUC *usecase.EnrollUseCase, line *replayLine, names map[model.PersonID]string, byName map[string]model.PersonID) error {
	if line.Person == "" {
		return goerr.New("enroll line requires a person name")
	}

	personID, ok := byName[line.Person]
	if !ok {
		person, err := enrollUC.RegisterPerson(ctx, &model.Person{Name: line.Person})
		if err != nil {
			return err
		}
		personID = person.ID
		byName[line.Person] = personID
		names[personID] = line.Person
	}

	_, _, err := enrollUC.AddFaceSample(ctx, personID, types.Encoding(line.Encoding), "replay", nil)
	return err
}

func printOutcome(lineNo int, kind, name string, distance float64) {
	c := outcomeColor(kind)
	if name == "" {
		name = "-"
	}
	fmt.Printf("%5d  %s  person=%s distance=%.4f\n", lineNo, c.Sprintf("%-16s", kind), name, distance)
}

func outcomeColor(kind string) *color.Color {
	switch types.OutcomeKind(kind) {
	case types.OutcomeRecorded:
		return recordedColor
	case types.OutcomeDuplicate:
		return duplicateColor
	case types.OutcomeUnrecognized:
		return unrecognizedColor
	case types.OutcomeThrottled:
		return throttledColor
	}
	switch types.DepartureKind(kind) {
	case types.DepartureRecorded:
		return recordedColor
	case types.DepartureDuplicate:
		return duplicateColor
	case types.DepartureUnrecognized:
		return unrecognizedColor
	case types.DepartureThrottled:
		return throttledColor
	}
	// NOT_PRESENT and TOO_SOON
	return rejectedColor
}

// replayTallyOrder fixes the summary order. Arrival and departure kinds
// share some labels (UNRECOGNIZED, THROTTLED), so the list is deduplicated.
func replayTallyOrder() []string {
	var order []string
	seen := make(map[string]bool)
	for _, k := range types.AllOutcomeKinds() {
		if !seen[string(k)] {
			seen[string(k)] = true
			order = append(order, string(k))
		}
	}
	for _, k := range types.AllDepartureKinds() {
		if !seen[string(k)] {
			seen[string(k)] = true
			order = append(order, string(k))
		}
	}
	return order
}
